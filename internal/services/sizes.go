package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/anniejean/castingdesk/internal/events"
	"github.com/anniejean/castingdesk/internal/metrics"
	"github.com/anniejean/castingdesk/internal/models"
	"github.com/anniejean/castingdesk/internal/sizing"
)

// SizeReconciler keeps a child's size assignments in step with its
// measurements. Assignments are derived state: every write replaces the
// whole set for the child and refreshes children.current_size.
type SizeReconciler struct {
	db         *gorm.DB
	classifier *sizing.Classifier
	locks      *keyedMutex
	log        *zap.Logger
}

type ReconcilerOption func(*SizeReconciler)

func WithReconcilerLogger(l *zap.Logger) ReconcilerOption {
	return func(s *SizeReconciler) { s.log = l }
}

func NewSizeReconciler(gdb *gorm.DB, c *sizing.Classifier, opts ...ReconcilerOption) *SizeReconciler {
	s := &SizeReconciler{
		db:         gdb,
		classifier: c,
		locks:      newKeyedMutex(),
		log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *SizeReconciler) Classifier() *sizing.Classifier { return s.classifier }

// Reconcile classifies the measurements and replaces the child's size rows
// in one transaction: old rows deleted, one row per label inserted in
// classifier order with only the first marked primary, and the child's
// current_size, weight and height updated.
//
// Calls for the same child are serialized; calls for different children
// don't wait on each other. Indeterminate measurements return a
// *NoApplicableSizeError and write nothing. A missing child returns an
// error wrapping gorm.ErrRecordNotFound. Storage errors are returned after
// rollback, without retry.
func (s *SizeReconciler) Reconcile(ctx context.Context, childID uint, weight, height any) (labels []string, err error) {
	start := time.Now()
	defer func() {
		metrics.ReconcileSeconds.Observe(time.Since(start).Seconds())
		metrics.Reconciliations.WithLabelValues(reconcileOutcome(err)).Inc()
	}()

	w, h, labels, err := s.classify(childID, weight, height)
	if err != nil {
		s.log.Warn("size indeterminate", zap.Uint("child_id", childID), zap.Error(err))
		return nil, err
	}

	unlock := s.locks.Lock(childID)
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.write(tx, childID, w, h, labels)
	})
	if err != nil {
		return nil, err
	}

	metrics.AssignmentsWritten.Add(float64(len(labels)))
	s.log.Debug("sizes reconciled",
		zap.Uint("child_id", childID),
		zap.Strings("sizes", labels),
		zap.String("primary", labels[0]),
	)
	if events.OnSizesReconciled != nil {
		events.OnSizesReconciled(childID, append([]string(nil), labels...))
	}
	return labels, nil
}

// ReconcileTx does the same writes as Reconcile inside a transaction the
// caller owns. It takes no per-child lock: intake resubmissions call it for
// children that already exist, and those writes are serialized against
// Reconcile only because db.Open caps the pool at one connection, so a
// caller's transaction and a Reconcile transaction never overlap. Taking
// the lock here would deadlock against that single connection when a
// Reconcile holding the lock waits for it. Keep the cap if this changes.
func (s *SizeReconciler) ReconcileTx(tx *gorm.DB, childID uint, weight, height any) ([]string, error) {
	w, h, labels, err := s.classify(childID, weight, height)
	if err != nil {
		return nil, err
	}
	if err := s.write(tx, childID, w, h, labels); err != nil {
		return nil, err
	}
	metrics.AssignmentsWritten.Add(float64(len(labels)))
	return labels, nil
}

func (s *SizeReconciler) classify(childID uint, weight, height any) (float64, float64, []string, error) {
	noSize := &NoApplicableSizeError{
		ChildID: childID,
		Weight:  fmt.Sprint(weight),
		Height:  fmt.Sprint(height),
	}
	w, ok := sizing.ParseMeasure(weight)
	if !ok {
		return 0, 0, nil, noSize
	}
	h, ok := sizing.ParseMeasure(height)
	if !ok {
		return 0, 0, nil, noSize
	}
	labels := s.classifier.Classify(w, h)
	if len(labels) == 0 {
		return 0, 0, nil, noSize
	}
	return w, h, labels, nil
}

func (s *SizeReconciler) write(tx *gorm.DB, childID uint, weight, height float64, labels []string) error {
	res := tx.Model(&models.Child{}).
		Where("id = ?", childID).
		Updates(map[string]any{
			"current_size": labels[0],
			"weight":       weight,
			"height":       height,
		})
	if res.Error != nil {
		return fmt.Errorf("update child %d: %w", childID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("child %d: %w", childID, gorm.ErrRecordNotFound)
	}

	if err := tx.Where("child_id = ?", childID).Delete(&models.ChildSize{}).Error; err != nil {
		return fmt.Errorf("clear sizes for child %d: %w", childID, err)
	}

	rows := make([]models.ChildSize, len(labels))
	for i, l := range labels {
		rows[i] = models.ChildSize{ChildID: childID, Size: l, IsPrimary: i == 0}
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("insert sizes for child %d: %w", childID, err)
	}
	return nil
}

func reconcileOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoApplicableSize):
		return "no_size"
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// ChildrenWithSize returns the IDs of every child holding label, primary
// or not, in ascending order.
func (s *SizeReconciler) ChildrenWithSize(ctx context.Context, label string) ([]uint, error) {
	ids := []uint{}
	err := s.db.WithContext(ctx).
		Model(&models.ChildSize{}).
		Distinct("child_id").
		Where("size = ?", label).
		Order("child_id asc").
		Pluck("child_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("children with size %q: %w", label, err)
	}
	return ids, nil
}

// ChildSizes returns a child's assignments, primary first, the rest in
// canonical order.
func (s *SizeReconciler) ChildSizes(ctx context.Context, childID uint) ([]models.ChildSize, error) {
	var rows []models.ChildSize
	if err := s.db.WithContext(ctx).Where("child_id = ?", childID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sizes for child %d: %w", childID, err)
	}
	s.sortAssignments(rows)
	return rows, nil
}

func (s *SizeReconciler) sortAssignments(rows []models.ChildSize) {
	rank := func(l string) int {
		if r := s.classifier.Rank(l); r >= 0 {
			return r
		}
		return len(s.classifier.Labels())
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].IsPrimary != rows[j].IsPrimary {
			return rows[i].IsPrimary
		}
		ri, rj := rank(rows[i].Size), rank(rows[j].Size)
		if ri != rj {
			return ri < rj
		}
		return rows[i].Size < rows[j].Size
	})
}

// PrimarySize returns the child's primary label; ok is false when the
// child has no assignments.
func (s *SizeReconciler) PrimarySize(ctx context.Context, childID uint) (string, bool, error) {
	var rows []models.ChildSize
	err := s.db.WithContext(ctx).
		Where("child_id = ? AND is_primary = ?", childID, true).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return "", false, fmt.Errorf("primary size for child %d: %w", childID, err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Size, true, nil
}

func (s *SizeReconciler) ChildExists(ctx context.Context, childID uint) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Child{}).Where("id = ?", childID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("find child %d: %w", childID, err)
	}
	return n > 0, nil
}

func (s *SizeReconciler) HasMultipleSizes(ctx context.Context, childID uint) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.ChildSize{}).Where("child_id = ?", childID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count sizes for child %d: %w", childID, err)
	}
	return n > 1, nil
}

// BackfillReport summarizes a BackfillSizes run.
type BackfillReport struct {
	Processed int             `json:"processed"`
	Skipped   []uint          `json:"skipped"` // measurements classify to nothing
	Failed    map[uint]string `json:"failed"`
}

const backfillParallelism = 4

// BackfillSizes recomputes assignments for every stored child from its
// stored weight and height. Per-child failures are collected in the
// report; only cancellation or a failure to list children aborts the run.
func (s *SizeReconciler) BackfillSizes(ctx context.Context) (BackfillReport, error) {
	rep := BackfillReport{Skipped: []uint{}, Failed: map[uint]string{}}

	type row struct {
		ID     uint
		Weight float64
		Height float64
	}
	var rows []row
	if err := s.db.WithContext(ctx).
		Model(&models.Child{}).
		Select("id, weight, height").
		Order("id asc").
		Scan(&rows).Error; err != nil {
		return rep, fmt.Errorf("list children: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillParallelism)
	for _, r := range rows {
		r := r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, err := s.Reconcile(gctx, r.ID, r.Weight, r.Height)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				rep.Processed++
			case errors.Is(err, ErrNoApplicableSize):
				rep.Skipped = append(rep.Skipped, r.ID)
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				rep.Failed[r.ID] = err.Error()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}

	sort.Slice(rep.Skipped, func(i, j int) bool { return rep.Skipped[i] < rep.Skipped[j] })
	s.log.Info("size backfill finished",
		zap.Int("children", len(rows)),
		zap.Int("processed", rep.Processed),
		zap.Int("skipped", len(rep.Skipped)),
		zap.Int("failed", len(rep.Failed)),
	)
	return rep, nil
}
