package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hydra/internal/llm"
	"hydra/internal/solver/ports"
)

func (s *Server) handleSolve(c *gin.Context) {
	var req SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Error:   fmt.Sprintf("invalid request: %v", err),
		})
		return
	}

	if req.NumAgents == 0 && s.defaultAgents > 0 {
		req.NumAgents = s.defaultAgents
	}

	config := ports.TaskConfig{
		AgentCount:          req.NumAgents,
		Model:               req.Model,
		InstructionVariants: req.OtherPrompts,
		MaxIterations:       req.MaxIterations,
		Timeout:             time.Duration(req.Timeout) * time.Second,
	}

	taskID, err := s.registry.CreateTask(c.Request.Context(), req.ProblemStatement, config)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ports.ErrInvalidConfig) {
			status = http.StatusBadRequest
		}
		c.JSON(status, APIResponse{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data: SolveResponse{
			TaskID:  taskID,
			Message: fmt.Sprintf("Started solving with %d agents", config.AgentCount),
			Status:  "started",
		},
	})
}

func (s *Server) handleListModels(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    ModelListResponse{Models: llm.AvailableModels()},
	})
}

func (s *Server) handleListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    TaskListResponse{Tasks: s.registry.ListTasks()},
	})
}

func (s *Server) handleTaskStatus(c *gin.Context) {
	task, err := s.registry.GetTask(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, APIResponse{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Data: task})
}

func (s *Server) handleTaskSolution(c *gin.Context) {
	task, err := s.registry.GetTask(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, APIResponse{Success: false, Error: err.Error()})
		return
	}

	if !task.SolutionFound() {
		c.JSON(http.StatusOK, APIResponse{
			Success: true,
			Data:    SolutionResponse{SolutionFound: false, Message: "No solution found yet"},
		})
		return
	}

	response := SolutionResponse{
		SolutionFound:   true,
		SolutionAgentID: task.SolutionAgentID,
		Solution:        task.Solution,
	}
	if task.StartedAt != nil && task.CompletedAt != nil {
		seconds := task.CompletedAt.Sub(*task.StartedAt).Seconds()
		response.ExecutionTime = &seconds
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Data: response})
}

func (s *Server) handleTaskCancel(c *gin.Context) {
	taskID := c.Param("id")
	if err := s.registry.CancelTask(taskID); err != nil {
		c.JSON(http.StatusNotFound, APIResponse{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    gin.H{"message": fmt.Sprintf("Task %s cancelled", taskID)},
	})
}

func (s *Server) handleTaskDelete(c *gin.Context) {
	taskID := c.Param("id")
	if err := s.registry.DeleteTask(taskID); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ports.ErrTaskNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, APIResponse{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    gin.H{"message": fmt.Sprintf("Task %s deleted", taskID)},
	})
}
