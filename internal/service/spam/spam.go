// Package spam implements the first-pass comment gate: sanitization,
// honeypot and link heuristics, and a per-IP rate limit. The safety pipeline
// only runs on content this gate allows.
package spam

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lumacms/lumacms/pkg/redis"
)

// Decision is the gate outcome.
type Decision string

const (
	DecisionAllow       Decision = "allow"
	DecisionReject      Decision = "reject"
	DecisionRateLimited Decision = "rate_limited"
	DecisionPending     Decision = "pending"
	DecisionSpam        Decision = "spam"
)

// Params describes one submission.
type Params struct {
	Content     string
	DisplayName string
	Email       string
	TargetType  string
	TargetID    string
	UserID      string
	UserAgent   string
	RemoteIP    string
	Honeypot    string
}

// Result carries the gate decision plus sanitized content and moderation
// metadata for the comment row.
type Result struct {
	Decision   Decision
	Content    string
	IsApproved bool
	IsSpam     bool
	IPHash     string
	SpamScore  *float64
	SpamReason *string
	LinkCount  int
}

// Checker is the gate as seen by the comment orchestrator.
type Checker interface {
	Check(ctx context.Context, p Params) (Result, error)
}

const (
	maxContentLength = 4000
	linkPendingAt    = 2
	linkSpamAt       = 5
	rateLimitWindow  = time.Minute
	rateLimitMax     = 5
)

var linkPattern = regexp.MustCompile(`(?i)https?://`)

// Gate is the default heuristic implementation.
type Gate struct {
	limiter *redis.Cache
	log     *zap.Logger
}

var _ Checker = (*Gate)(nil)

// NewGate wires a gate. The limiter may be nil; rate limiting is then
// skipped.
func NewGate(limiter *redis.Cache, log *zap.Logger) *Gate {
	return &Gate{
		limiter: limiter,
		log:     log.With(zap.String("module", "spam")),
	}
}

// Check runs the gate. It never returns an error for content reasons; the
// error return covers only internal failures, which callers may treat as a
// pending decision.
func (g *Gate) Check(ctx context.Context, p Params) (Result, error) {
	ipHash := HashToken(p.RemoteIP)

	// Honeypot field filled means a bot; drop it outright.
	if strings.TrimSpace(p.Honeypot) != "" {
		reason := "honeypot"
		return Result{
			Decision:   DecisionReject,
			IsSpam:     true,
			IPHash:     ipHash,
			SpamReason: &reason,
		}, nil
	}

	content := sanitize(p.Content)
	if content == "" {
		reason := "empty content"
		return Result{
			Decision:   DecisionReject,
			IPHash:     ipHash,
			SpamReason: &reason,
		}, nil
	}

	if g.limiter != nil && ipHash != "" {
		count, err := g.limiter.IncrWindow(ctx, "ratelimit", ipHash, rateLimitWindow)
		if err != nil {
			g.log.Warn("rate limit check failed, allowing", zap.Error(err))
		} else if count > rateLimitMax {
			return Result{
				Decision: DecisionRateLimited,
				Content:  content,
				IPHash:   ipHash,
			}, nil
		}
	}

	linkCount := len(linkPattern.FindAllStringIndex(content, -1))
	score := spamScore(content, linkCount)

	result := Result{
		Content:   content,
		IPHash:    ipHash,
		LinkCount: linkCount,
		SpamScore: &score,
	}

	switch {
	case linkCount >= linkSpamAt:
		reason := "excessive links"
		result.Decision = DecisionSpam
		result.IsSpam = true
		result.SpamReason = &reason
	case linkCount >= linkPendingAt || len(content) > maxContentLength:
		reason := "held for review"
		result.Decision = DecisionPending
		result.SpamReason = &reason
	default:
		result.Decision = DecisionAllow
		result.IsApproved = true
	}

	return result, nil
}

// sanitize trims and strips control characters; markdown rendering happens
// downstream in the web layer.
func sanitize(content string) string {
	var b strings.Builder
	for _, r := range content {
		if r == '\n' || r == '\t' || r >= 0x20 {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func spamScore(content string, linkCount int) float64 {
	score := float64(linkCount) * 0.15
	if len(content) > maxContentLength {
		score += 0.3
	}
	if score > 1 {
		score = 1
	}
	return score
}

// HashToken hashes identifying tokens (IP, email) before storage.
func HashToken(token string) string {
	token = strings.TrimSpace(strings.ToLower(token))
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
