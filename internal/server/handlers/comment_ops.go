// Package handlers exposes composable HTTP operation handlers. Each handler
// serves one POST endpoint and dispatches on the "action" field of the JSON
// request body.
package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/lumacms/lumacms/internal/service/comment"
	"github.com/lumacms/lumacms/pkg/auth"
)

// CommentOpsHandler handles comment write actions via the "action" field:
// create_comment, update_comment, delete_comment. All actions require an
// authenticated user.
func CommentOpsHandler(svc *comment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("Failed to decode comment request JSON", zap.Error(err))
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		action, ok := req["action"].(string)
		if !ok || action == "" {
			http.Error(w, "missing or invalid action", http.StatusBadRequest)
			return
		}

		authCtx := auth.FromContext(r.Context())
		if authCtx.IsGuest() {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		switch action {
		case "create_comment":
			params := comment.CreateParams{
				Target: comment.Target{
					Kind: comment.TargetKind(asString(req["target_type"])),
					ID:   asString(req["target_id"]),
				},
				UserID:          authCtx.UserID,
				UserDisplayName: authCtx.DisplayName,
				UserAvatarURL:   authCtx.AvatarURL,
				UserEmail:       authCtx.Email,
				Content:         asString(req["content"]),
				ParentID:        asString(req["parent_id"]),
				UserAgent:       r.UserAgent(),
				RemoteIP:        clientIP(r),
				Honeypot:        asString(req["website"]),
			}
			writeResult(w, log, svc.CreateComment(ctx, params))

		case "update_comment":
			writeResult(w, log, svc.UpdateComment(ctx,
				asString(req["comment_id"]), authCtx.UserID, asString(req["content"])))

		case "delete_comment":
			writeResult(w, log, svc.DeleteComment(ctx,
				asString(req["comment_id"]), authCtx.UserID))

		default:
			log.Error("Unknown action in comment_ops", zap.String("action", action))
			http.Error(w, "unknown action", http.StatusBadRequest)
		}
	}
}

func writeResult(w http.ResponseWriter, log *zap.Logger, res comment.Result) {
	w.Header().Set("Content-Type", "application/json")
	payload := map[string]interface{}{
		"success": res.Success,
		"message": res.Message,
	}
	if res.Decision != "" {
		payload["decision"] = res.Decision
	}
	if res.SafetyDecision != "" {
		payload["safety_decision"] = string(res.SafetyDecision)
	}
	if res.Err != "" {
		payload["error"] = res.Err
	}
	if res.Comment != nil {
		payload["comment"] = map[string]interface{}{
			"id":          res.Comment.ID,
			"content":     res.Comment.Content,
			"is_approved": res.Comment.IsApproved,
			"created_at":  res.Comment.CreatedAt,
		}
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("Failed to write JSON response", zap.Error(err))
	}
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

func asBool(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

// clientIP prefers the first X-Forwarded-For hop set by the edge proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	return r.RemoteAddr
}
