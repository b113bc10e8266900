package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/lumacms/lumacms/internal/service/safety"
	"github.com/lumacms/lumacms/pkg/auth"
)

// SafetySettingsStore is the settings surface exposed to admins.
type SafetySettingsStore interface {
	Get(ctx context.Context) safety.Settings
	Update(ctx context.Context, settings safety.Settings) error
}

// SafetyOpsHandler handles moderation admin actions via the "action" field.
// Every action requires the admin role.
func SafetyOpsHandler(svc *safety.AdminService, settings SafetySettingsStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("Failed to decode safety request JSON", zap.Error(err))
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		action, ok := req["action"].(string)
		if !ok || action == "" {
			http.Error(w, "missing or invalid action", http.StatusBadRequest)
			return
		}

		authCtx := auth.FromContext(r.Context())
		if !auth.HasRole(authCtx, "admin") {
			http.Error(w, "forbidden: admin required", http.StatusForbidden)
			return
		}

		ctx := r.Context()
		switch action {
		case "fetch_queue":
			items, total, err := svc.FetchQueue(ctx, safety.QueueFilters{
				RiskLevel:  safety.RiskLevel(asString(req["risk_level"])),
				Unlabeled:  asBool(req["unlabeled"]),
				TargetType: asString(req["target_type"]),
				Limit:      asInt(req["limit"]),
				Offset:     asInt(req["offset"]),
			})
			if err != nil {
				http.Error(w, "failed to fetch queue", http.StatusInternalServerError)
				return
			}
			writeJSON(w, log, map[string]interface{}{"items": items, "total": total})

		case "get_assessment":
			assessment, err := svc.GetAssessmentDetail(ctx, asString(req["assessment_id"]))
			if err != nil {
				http.Error(w, "failed to get assessment", http.StatusInternalServerError)
				return
			}
			writeJSON(w, log, map[string]interface{}{"assessment": assessment})

		case "label_assessment":
			err := svc.LabelAssessment(ctx,
				asString(req["assessment_id"]),
				safety.HumanLabel(asString(req["label"])),
				authCtx.UserID)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			writeJSON(w, log, map[string]interface{}{"success": true})

		case "approve_comment":
			if err := svc.ApproveComment(ctx, asString(req["comment_id"])); err != nil {
				http.Error(w, "failed to approve comment", http.StatusInternalServerError)
				return
			}
			writeJSON(w, log, map[string]interface{}{"success": true})

		case "reject_comment":
			if err := svc.RejectComment(ctx, asString(req["comment_id"])); err != nil {
				http.Error(w, "failed to reject comment", http.StatusInternalServerError)
				return
			}
			writeJSON(w, log, map[string]interface{}{"success": true})

		case "promote_to_corpus":
			id, err := svc.PromoteToCorpus(ctx, safety.PromoteInput{
				Text:     asString(req["text"]),
				Label:    asString(req["label"]),
				Kind:     safety.CorpusKind(asString(req["kind"])),
				Activate: asBool(req["activate"]),
			}, authCtx.UserID)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			writeJSON(w, log, map[string]interface{}{"success": true, "item_id": id})

		case "list_corpus":
			items, total, err := svc.ListCorpusItems(ctx,
				asString(req["kind"]), asString(req["status"]),
				asInt(req["limit"]), asInt(req["offset"]))
			if err != nil {
				http.Error(w, "failed to list corpus items", http.StatusInternalServerError)
				return
			}
			writeJSON(w, log, map[string]interface{}{"items": items, "total": total})

		case "update_corpus_item":
			err := svc.UpdateCorpusItem(ctx, safety.CorpusItem{
				ID:      asString(req["item_id"]),
				Kind:    safety.CorpusKind(asString(req["kind"])),
				Label:   asString(req["label"]),
				Content: asString(req["text"]),
				Status:  asString(req["status"]),
			})
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			writeJSON(w, log, map[string]interface{}{"success": true})

		case "delete_corpus_item":
			err := svc.DeleteCorpusItem(ctx,
				asString(req["item_id"]),
				safety.CorpusKind(asString(req["kind"])))
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			writeJSON(w, log, map[string]interface{}{"success": true})

		case "get_settings":
			writeJSON(w, log, map[string]interface{}{"settings": settings.Get(ctx)})

		case "update_settings":
			next := safety.Settings{
				Enabled:   asBool(req["enabled"]),
				ModelID:   asString(req["model_id"]),
				TimeoutMs: asInt(req["timeout_ms"]),
			}
			if err := settings.Update(ctx, next); err != nil {
				log.Error("Failed to update safety settings", zap.Error(err))
				http.Error(w, "failed to update settings", http.StatusInternalServerError)
				return
			}
			writeJSON(w, log, map[string]interface{}{"success": true, "settings": next})

		default:
			log.Error("Unknown action in safety_ops", zap.String("action", action))
			http.Error(w, "unknown action", http.StatusBadRequest)
		}
	}
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("Failed to write JSON response", zap.Error(err))
	}
}
