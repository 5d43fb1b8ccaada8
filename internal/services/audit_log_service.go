package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/elfogon/api/internal/domain"
	"github.com/elfogon/api/internal/repositories"
)

const (
	defaultAuditSeverity = "info"
	defaultActorType     = "staff"
	hasherPrefix         = "sha256:"

	auditIDPrefix = "aud_"
)

// AuditLogger defines the logging contract used by the audit writer service.
type AuditLogger interface {
	Warnf(format string, args ...any)
}

// AuditLogServiceDeps bundles constructor inputs for the audit writer service.
type AuditLogServiceDeps struct {
	Repository  repositories.AuditLogRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      AuditLogger
	// HashSalt salts customer phone hashes. Entries remain correlatable
	// without storing the number itself.
	HashSalt string
}

type auditLogService struct {
	repo     repositories.AuditLogRepository
	clock    func() time.Time
	newID    func() string
	logger   AuditLogger
	hashSalt string
}

// NewAuditLogService creates an audit log writer backed by the supplied repository.
func NewAuditLogService(deps AuditLogServiceDeps) (AuditLogService, error) {
	if deps.Repository == nil {
		return nil, errors.New("audit log service: repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = noopAuditLogger{}
	}

	return &auditLogService{
		repo:     deps.Repository,
		clock:    func() time.Time { return clock().UTC() },
		newID:    idGen,
		logger:   logger,
		hashSalt: deps.HashSalt,
	}, nil
}

// Record persists an audit entry after sanitising sensitive fields. Customer
// phone numbers never reach storage in the clear.
func (s *auditLogService) Record(ctx context.Context, cmd AuditEntryCommand) error {
	entry := s.buildEntry(cmd)
	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger.Warnf("audit log append failed: %v", err)
		return err
	}
	return nil
}

// List delegates to the repository to retrieve paginated audit entries.
func (s *auditLogService) List(ctx context.Context, filter repositories.AuditLogFilter) (domain.CursorPage[domain.AuditLogEntry], error) {
	filter.Actor = strings.TrimSpace(filter.Actor)
	filter.Action = strings.TrimSpace(filter.Action)
	filter.TargetRef = strings.TrimSpace(filter.TargetRef)
	return s.repo.List(ctx, filter)
}

func (s *auditLogService) buildEntry(cmd AuditEntryCommand) domain.AuditLogEntry {
	entry := domain.AuditLogEntry{
		ID:        auditIDPrefix + s.newID(),
		Actor:     sanitizeText(cmd.Actor, 160),
		ActorType: normalizeActorType(cmd.ActorType),
		Action:    sanitizeText(cmd.Action, 120),
		TargetRef: sanitizeText(cmd.TargetRef, 200),
		Severity:  normalizeSeverity(cmd.Severity),
		RequestID: sanitizeText(cmd.RequestID, 128),
		CreatedAt: s.clock(),
	}

	if len(cmd.Metadata) > 0 {
		meta := make(map[string]any, len(cmd.Metadata))
		for key, value := range cmd.Metadata {
			key = sanitizeText(key, 64)
			if key == "" {
				continue
			}
			meta[key] = sanitizeMetadataValue(value)
		}
		if len(meta) > 0 {
			entry.Metadata = meta
		}
	}

	if phone := strings.TrimSpace(cmd.CustomerPhone); phone != "" {
		entry.PhoneHash = hasherPrefix + s.hashString(phone)
	}

	return entry
}

func (s *auditLogService) hashString(value string) string {
	sum := sha256.Sum256([]byte(s.hashSalt + strings.TrimSpace(value)))
	return hex.EncodeToString(sum[:])
}

type noopAuditLogger struct{}

func (noopAuditLogger) Warnf(string, ...any) {}

func normalizeActorType(actorType string) string {
	normalized := strings.ToLower(strings.TrimSpace(actorType))
	switch normalized {
	case "staff", "admin", "system", "service":
		return normalized
	}
	return defaultActorType
}

func normalizeSeverity(severity string) string {
	normalized := strings.ToLower(strings.TrimSpace(severity))
	switch normalized {
	case "info", "warning", "critical":
		return normalized
	}
	return defaultAuditSeverity
}

func sanitizeText(value string, maxLen int) string {
	value = strings.TrimSpace(value)
	value = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		if r < 32 {
			return -1
		}
		return r
	}, value)
	if maxLen > 0 && len(value) > maxLen {
		value = value[:maxLen]
	}
	return value
}

func sanitizeMetadataValue(value any) any {
	switch v := value.(type) {
	case string:
		return sanitizeText(v, 512)
	case fmt.Stringer:
		return sanitizeText(v.String(), 512)
	default:
		return v
	}
}
