package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Emmyhack/Ahorro/internal/domain"
)

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver.
//
// The archiver only requires the query methods it actually calls, not the
// full domain store interfaces. The Postgres stores satisfy these
// implicitly.
// ---------------------------------------------------------------------------

// LedgerArchiveStore provides read access to the full contribution history
// of a group for archival purposes.
type LedgerArchiveStore interface {
	// ListContributions with a negative cycle returns every cycle.
	ListContributions(ctx context.Context, groupID string, cycle int) ([]domain.Contribution, error)
	ListDebts(ctx context.Context, groupID string) ([]domain.MemberDebt, error)
}

// AuditArchiveStore provides read access to a group's audit trail.
type AuditArchiveStore interface {
	List(ctx context.Context, groupID string, opts domain.ListOpts) ([]domain.AuditEntry, error)
}

// groupArchive is the serialized shape of an archived group ledger.
type groupArchive struct {
	Group         domain.ThriftGroup    `json:"group"`
	Members       []domain.MemberTotals `json:"members"`
	Contributions []domain.Contribution `json:"contributions"`
	Debts         []domain.MemberDebt   `json:"debts"`
	Audit         []domain.AuditEntry   `json:"audit"`
	ArchivedAt    time.Time             `json:"archived_at"`
}

// ArchiveImpl implements domain.Archiver by collecting a closed group's
// complete ledger history, serializing it to JSON, and uploading the result
// to S3. The primary store rows are intentionally NOT deleted here; pruning
// is a separate, explicit step executed after the archive is verified.
type ArchiveImpl struct {
	writer domain.BlobWriter
	ledger LedgerArchiveStore
	audit  AuditArchiveStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, ledger LedgerArchiveStore, audit AuditArchiveStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		ledger: ledger,
		audit:  audit,
	}
}

// ArchiveGroup uploads the group's full history to
// archive/groups/YYYY-MM/<id>.json and returns the object path.
func (a *ArchiveImpl) ArchiveGroup(ctx context.Context, snap domain.GroupSnapshot) (string, error) {
	contributions, err := a.ledger.ListContributions(ctx, snap.Group.ID, -1)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive group contributions: %w", err)
	}
	debts, err := a.ledger.ListDebts(ctx, snap.Group.ID)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive group debts: %w", err)
	}

	var audit []domain.AuditEntry
	if a.audit != nil {
		audit, err = a.audit.List(ctx, snap.Group.ID, domain.ListOpts{})
		if err != nil {
			return "", fmt.Errorf("s3blob: archive group audit: %w", err)
		}
	}

	now := time.Now().UTC()
	doc := groupArchive{
		Group:         snap.Group,
		Members:       snap.Members,
		Contributions: contributions,
		Debts:         debts,
		Audit:         audit,
		ArchivedAt:    now,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("s3blob: archive group marshal: %w", err)
	}

	path := archivePath(snap.Group.ID, now)
	if err := a.writer.Put(ctx, path, &buf, "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive group upload: %w", err)
	}
	return path, nil
}

// archivePath builds the S3 key for a group archive, partitioned by the
// year-month of the archive time.
//
//	archive/groups/2026-08/<group-id>.json
func archivePath(groupID string, at time.Time) string {
	return fmt.Sprintf("archive/groups/%s/%s.json", at.Format("2006-01"), groupID)
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
