package http

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"scriptd/internal/jobs"
)

func scriptsFromCtx(c *fiber.Ctx) ScriptService {
	return c.Locals("scripts").(ScriptService)
}

// scriptExecuteHandler submits the raw request body as script code. With
// ?blocking=true the response carries the terminal record.
func scriptExecuteHandler(c *fiber.Ctx) error {
	svc := scriptsFromCtx(c)

	code := string(c.Body())
	if strings.TrimSpace(code) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "script code is required in the request body",
		})
	}

	blocking := false
	if v := c.Query("blocking"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Success: false,
				Code:    "BAD_REQUEST",
				Error:   "invalid blocking value; expected true or false",
			})
		}
		blocking = b
	}

	job, err := svc.Submit(c.Context(), code, blocking)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			// Removed while a blocking caller was still waiting.
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Success: false,
				Code:    "NOT_FOUND",
				Error:   "script was removed before it finished",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "SUBMIT_FAILED",
			Error:   err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(job)
}

// scriptListHandler lists scripts, optionally filtered by status and
// ordered by start time (?order=desc for newest first).
func scriptListHandler(c *fiber.Ctx) error {
	svc := scriptsFromCtx(c)

	status := jobs.Status(c.Query("status"))
	if status != "" && !status.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "invalid status value; expected queued, executing, completed, failed or stopped",
		})
	}

	list := svc.List(jobs.ListOptions{
		Status: status,
		Order:  c.Query("order"),
	})
	return c.Status(fiber.StatusOK).JSON(list)
}

func scriptDetailHandler(c *fiber.Ctx) error {
	svc := scriptsFromCtx(c)

	job, err := svc.Get(c.Params("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Success: false,
				Code:    "NOT_FOUND",
				Error:   "script not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(job)
}

// scriptStopHandler always acknowledges; stopping an unknown or finished
// script is a no-op.
func scriptStopHandler(c *fiber.Ctx) error {
	svc := scriptsFromCtx(c)
	svc.Stop(c.Params("id"))
	return c.Status(fiber.StatusAccepted).JSON(AckResponse{Success: true})
}

func scriptDeleteHandler(c *fiber.Ctx) error {
	svc := scriptsFromCtx(c)
	svc.Remove(c.Params("id"))
	return c.Status(fiber.StatusOK).JSON(AckResponse{Success: true})
}
