package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"relief-offline-ledger/internal/core/domain"
	"relief-offline-ledger/internal/core/ports"
	"relief-offline-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxAuditResource lets a handler name the resource an audited write touched.
const CtxAuditResource = "audit_resource_id"

// AuditLog records successful write requests. It maps the matched route to an
// audit action, so it must run on the engine, not inside a group.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(response.CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Actor:        c.GetString(CtxSubject),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.GetString(CtxAuditResource),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	const prefix = "/api/v1/offline/"
	switch {
	case route == "/api/v1/auth/admin-token" && method == http.MethodPost:
		return domain.AuditActionAdminLogin, "session"
	case !strings.HasPrefix(route, prefix):
		return "", ""
	}

	switch strings.TrimPrefix(route, prefix) + " " + method {
	case "create-iou POST":
		return domain.AuditActionCreateIOU, "iou"
	case "bulk-sync POST":
		return domain.AuditActionBulkSync, "reconcile_batch"
	case "mark-settled POST":
		return domain.AuditActionMarkSettled, "iou"
	case "iou/:id DELETE":
		return domain.AuditActionDeleteIOU, "iou"
	case "sweep POST":
		return domain.AuditActionSweep, "reconcile_batch"
	}
	return "", ""
}
