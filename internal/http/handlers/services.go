package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mkowalczyk/svchub/internal/config"
	"github.com/mkowalczyk/svchub/internal/domain/catalog"
	"github.com/mkowalczyk/svchub/internal/domain/user"
	"github.com/mkowalczyk/svchub/internal/http/middlewares"
)

type ServiceCatalog interface {
	List(ctx context.Context, accountID string, filter catalog.ListFilter) (catalog.ListResult, error)
	GetByID(ctx context.Context, accountID, id string) (catalog.Service, error)
}

type AccountResolver interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type ServicesHandler struct {
	repo  ServiceCatalog
	users AccountResolver
}

func NewServicesHandler(repo ServiceCatalog, users AccountResolver) *ServicesHandler {
	return &ServicesHandler{
		repo:  repo,
		users: users,
	}
}

// ListServices returns one page of the caller's services in the listing
// view, wrapped in the paging envelope.
func (h *ServicesHandler) ListServices(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	accountID, ok := h.callerAccount(ctx, cctx)

	if !ok {
		return
	}

	filter := catalog.ListFilter{
		Search:   ctx.Query("search"),
		Page:     intQuery(ctx, "page", 1),
		PageSize: intQuery(ctx, "page_size", catalog.DefaultPageSize),
	}

	result, err := h.repo.List(cctx, accountID, filter)

	if err != nil {
		RespondInternal(ctx, "Could not list services")
		return
	}

	data := make([]catalog.ListingService, 0, len(result.Items))

	for _, svc := range result.Items {
		data = append(data, catalog.ProjectListing(svc))
	}

	ctx.JSON(http.StatusOK, gin.H{
		"data":      data,
		"total":     result.Total,
		"page":      result.Page,
		"page_size": result.PageSize,
		"last_page": result.LastPage,
	})
}

// GetServiceByID returns the full view of one service. An id owned by a
// different account gets the same 404 as a nonexistent one.
func (h *ServicesHandler) GetServiceByID(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	accountID, ok := h.callerAccount(ctx, cctx)

	if !ok {
		return
	}

	svc, err := h.repo.GetByID(cctx, accountID, ctx.Param("id"))

	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			RespondNotFound(ctx, "Service not found")
			return
		}

		RespondInternal(ctx, "Could not fetch service")
		return
	}

	ctx.JSON(http.StatusOK, catalog.ProjectFull(svc))
}

// callerAccount resolves the authenticated user's account from the verified
// token claims. The token only proves identity; the tenant is always looked
// up fresh.
func (h *ServicesHandler) callerAccount(ctx *gin.Context, cctx context.Context) (string, bool) {
	email, ok := middlewares.EmailFromContext(ctx)

	if !ok || email == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return "", false
	}

	u, err := h.users.GetByEmail(cctx, email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondUnAuthorized(ctx, "unauthorized", "Unknown identity")
			return "", false
		}

		RespondInternal(ctx, "Could not resolve account")
		return "", false
	}

	return u.AccountID, true
}

// intQuery parses a positive integer query param, falling back to the
// default when the param is absent or non-numeric.
func intQuery(ctx *gin.Context, key string, fallback int) int {
	raw := ctx.Query(key)

	if raw == "" {
		return fallback
	}

	n, err := strconv.Atoi(raw)

	if err != nil || n < 1 {
		return fallback
	}

	return n
}
