package server

import (
	"time"

	"keystone/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createProjectRequest struct {
	Title       string              `json:"title" validate:"notblank,max=200"`
	Description string              `json:"description" validate:"max=5000"`
	StartDate   service.Date        `json:"startDate"`
	Deadline    service.Date        `json:"deadline"`
	Priority    string              `json:"priority"`
	TeamMembers service.TeamMembers `json:"teamMembers"`
	Status      string              `json:"status"`
}

type updateProjectRequest struct {
	Title       *string              `json:"title" validate:"omitnil,notblank,max=200"`
	Description *string              `json:"description" validate:"omitnil,max=5000"`
	StartDate   *service.Date        `json:"startDate"`
	Deadline    *service.Date        `json:"deadline"`
	Priority    *string              `json:"priority"`
	TeamMembers *service.TeamMembers `json:"teamMembers"`
	Status      *string              `json:"status"`
}

type createTaskRequest struct {
	Title       string       `json:"title" validate:"notblank,max=200"`
	Description string       `json:"description" validate:"max=5000"`
	Deadline    service.Date `json:"deadline"`
	Status      string       `json:"status"`
	Priority    string       `json:"priority"`
	AssignedTo  *uint        `json:"assignedTo"`
	Project     uint         `json:"project"`
}

type updateTaskRequest struct {
	Title       *string                `json:"title" validate:"omitnil,notblank,max=200"`
	Description *string                `json:"description" validate:"omitnil,max=5000"`
	Deadline    *service.Date          `json:"deadline"`
	Status      *string                `json:"status"`
	Priority    *string                `json:"priority"`
	AssignedTo  service.AssigneeUpdate `json:"assignedTo" swaggertype:"integer"`
	Project     *uint                  `json:"project"`
}

func datePtr(d *service.Date) *time.Time {
	if d == nil {
		return nil
	}
	return d.Ptr()
}

// GetProjects handles GET /projects
// @Summary List the caller's projects
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Project
// @Router /projects [get]
func (s *Server) GetProjects(c *fiber.Ctx) error {
	projects, err := s.projectService.List(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(projects)
}

// CreateProject handles POST /projects
// @Summary Create a project
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createProjectRequest true "Project"
// @Success 201 {object} models.Project
// @Failure 400 {object} models.ErrorResponse
// @Router /projects [post]
func (s *Server) CreateProject(c *fiber.Ctx) error {
	var req createProjectRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	project, err := s.projectService.Create(c.UserContext(), service.CreateProjectInput{
		OwnerID:     currentUserID(c),
		Title:       req.Title,
		Description: req.Description,
		StartDate:   req.StartDate.Ptr(),
		Deadline:    req.Deadline.Ptr(),
		Priority:    req.Priority,
		TeamMembers: req.TeamMembers,
		Status:      req.Status,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(project)
}

// GetProject handles GET /projects/:id
// @Summary Get a project with its tasks
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Success 200 {object} models.Project
// @Failure 404 {object} models.ErrorResponse
// @Router /projects/{id} [get]
func (s *Server) GetProject(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	project, err := s.projectService.Get(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(project)
}

// UpdateProject handles PUT /projects/:id. Only fields present in the body change.
// @Summary Update a project
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Param request body updateProjectRequest true "Fields to change"
// @Success 200 {object} models.Project
// @Failure 404 {object} models.ErrorResponse
// @Router /projects/{id} [put]
func (s *Server) UpdateProject(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req updateProjectRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	in := service.UpdateProjectInput{
		OwnerID:     currentUserID(c),
		ProjectID:   id,
		Title:       req.Title,
		Description: req.Description,
		StartDate:   datePtr(req.StartDate),
		Deadline:    datePtr(req.Deadline),
		Priority:    req.Priority,
		Status:      req.Status,
	}
	if req.TeamMembers != nil {
		members := []string(*req.TeamMembers)
		if members == nil {
			members = []string{}
		}
		in.TeamMembers = &members
	}

	project, err := s.projectService.Update(c.UserContext(), in)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(project)
}

// DeleteProject handles DELETE /projects/:id and removes the project's tasks with it.
// @Summary Delete a project and its tasks
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /projects/{id} [delete]
func (s *Server) DeleteProject(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.projectService.Delete(c.UserContext(), id, currentUserID(c)); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"message": "Project and associated tasks deleted"})
}

// GetTasks handles GET /tasks
// @Summary List tasks across the caller's projects
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Task
// @Router /tasks [get]
func (s *Server) GetTasks(c *fiber.Ctx) error {
	tasks, err := s.taskService.List(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(tasks)
}

// CreateTask handles POST /tasks
// @Summary Create a task in one of the caller's projects
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createTaskRequest true "Task"
// @Success 201 {object} models.Task
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /tasks [post]
func (s *Server) CreateTask(c *fiber.Ctx) error {
	var req createTaskRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	task, err := s.taskService.Create(c.UserContext(), service.CreateTaskInput{
		OwnerID:     currentUserID(c),
		ProjectID:   req.Project,
		Title:       req.Title,
		Description: req.Description,
		Deadline:    req.Deadline.Ptr(),
		Status:      req.Status,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

// GetTask handles GET /tasks/:id
// @Summary Get a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {object} models.Task
// @Failure 404 {object} models.ErrorResponse
// @Router /tasks/{id} [get]
func (s *Server) GetTask(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	task, err := s.taskService.Get(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(task)
}

// UpdateTask handles PUT /tasks/:id
// @Summary Update a task
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Param request body updateTaskRequest true "Fields to change"
// @Success 200 {object} models.Task
// @Failure 404 {object} models.ErrorResponse
// @Router /tasks/{id} [put]
func (s *Server) UpdateTask(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req updateTaskRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	task, err := s.taskService.Update(c.UserContext(), service.UpdateTaskInput{
		OwnerID:     currentUserID(c),
		TaskID:      id,
		ProjectID:   req.Project,
		Title:       req.Title,
		Description: req.Description,
		Deadline:    datePtr(req.Deadline),
		Status:      req.Status,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(task)
}

// CompleteTask handles PATCH /tasks/:id/complete
// @Summary Mark a task completed
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {object} models.Task
// @Failure 404 {object} models.ErrorResponse
// @Router /tasks/{id}/complete [patch]
func (s *Server) CompleteTask(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	task, err := s.taskService.Complete(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(task)
}

// DeleteTask handles DELETE /tasks/:id. The parent project is kept.
// @Summary Delete a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /tasks/{id} [delete]
func (s *Server) DeleteTask(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.taskService.Delete(c.UserContext(), id, currentUserID(c)); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"message": "Task deleted"})
}

// GetNotifications handles GET /api/notifications (latest 50, newest first).
// @Summary List the caller's notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Notification
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	list, err := s.notificationService.List(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(list)
}

// MarkNotificationRead handles PUT /api/notifications/:id/read
// @Summary Mark a notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 200 {object} models.Notification
// @Failure 404 {object} models.ErrorResponse
// @Router /notifications/{id}/read [put]
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	n, err := s.notificationService.MarkRead(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(n)
}

// GetProgress handles GET /api/progress
// @Summary Completion percentages over the caller's projects and tasks
// @Tags progress
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Progress
// @Router /progress [get]
func (s *Server) GetProgress(c *fiber.Ctx) error {
	progress, err := s.progressService.Summary(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(progress)
}
