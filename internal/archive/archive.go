// Package archive moves old courses out of the main category into per-year
// archive categories and finds courses that hold no content.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/samber/oops"

	"github.com/lazypower/grove/internal/config"
	"github.com/lazypower/grove/internal/tree"
)

// Relocator is the part of tree.Relocator the archiver needs.
type Relocator interface {
	Relocate(ctx context.Context, sourceID, targetID, treeID int64) (*tree.Move, error)
}

// Archiver runs the archive and empty-course workflows against one tree.
type Archiver struct {
	cfg       config.TreeConfig
	catalog   tree.Catalog
	relocator Relocator
	logger    *slog.Logger
}

// ErrNotConfigured reports a category id missing from the tree config.
var ErrNotConfigured = errors.New("archive category not configured")

// CodeNotConfigured is the oops code carried by ErrNotConfigured errors.
const CodeNotConfigured = "archive.config.invalid"

// New creates an Archiver. The main category must be configured; the archive
// category is only needed by Archive.
func New(cfg config.TreeConfig, catalog tree.Catalog, relocator Relocator, logger *slog.Logger) (*Archiver, error) {
	err := validation.ValidateStruct(&cfg,
		validation.Field(&cfg.MainCategoryID, validation.Required),
	)
	if err != nil {
		return nil, notConfigured(cfg.ID, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{cfg: cfg, catalog: catalog, relocator: relocator, logger: logger}, nil
}

func notConfigured(treeID int64, cause error) error {
	return oops.
		Code(CodeNotConfigured).
		In("archive").
		With("tree_id", treeID).
		Wrapf(fmt.Errorf("%w: %w", ErrNotConfigured, cause), "tree %d", treeID)
}

// Outcome of archiving one year.
type Outcome string

const (
	OutcomeMoved   Outcome = "moved"
	OutcomeSkipped Outcome = "skipped"
	OutcomePlanned Outcome = "planned"
)

// YearReport records what happened to the courses of one creation year.
type YearReport struct {
	Year     int          `json:"year"`
	TargetID int64        `json:"target_id,omitempty"`
	Outcome  Outcome      `json:"outcome"`
	Reason   string       `json:"reason,omitempty"`
	Moved    []tree.Child `json:"moved,omitempty"`
	Rejected []Rejection  `json:"rejected,omitempty"`
}

// Rejection is a course the relocator refused to move.
type Rejection struct {
	Course tree.Child `json:"course"`
	Error  string     `json:"error"`
}

// Report summarizes one archive run.
type Report struct {
	DryRun bool         `json:"dry_run"`
	Cutoff int          `json:"cutoff"`
	Years  []YearReport `json:"years"`
}

// MovedCount returns the number of courses moved, or planned in a dry run.
func (r *Report) MovedCount() int {
	n := 0
	for _, y := range r.Years {
		n += len(y.Moved)
	}
	return n
}

// Cutoff returns the newest creation year that gets archived at now.
func (a *Archiver) Cutoff(now time.Time) int {
	return now.UTC().Year() - a.cfg.KeepYears
}

// Archive moves every course created in a year at or before the cutoff under
// the archive category titled with that year. Years without such a category
// are skipped. Each course moves in its own transaction, so an error leaves
// the courses already moved in place and is returned with the partial report.
func (a *Archiver) Archive(ctx context.Context, now time.Time, dryRun bool) (*Report, error) {
	err := validation.ValidateStruct(&a.cfg,
		validation.Field(&a.cfg.ArchiveCategoryID, validation.Required),
	)
	if err != nil {
		return nil, notConfigured(a.cfg.ID, err)
	}

	report := &Report{DryRun: dryRun, Cutoff: a.Cutoff(now)}

	years, err := a.catalog.ChildYears(ctx, a.cfg.ID, a.cfg.MainCategoryID, a.cfg.CourseType)
	if err != nil {
		return report, fmt.Errorf("list course years: %w", err)
	}

	for _, year := range years {
		if year > report.Cutoff {
			continue
		}
		yr, err := a.archiveYear(ctx, year, dryRun)
		report.Years = append(report.Years, yr)
		if err != nil {
			return report, err
		}
	}

	a.logger.Info("archive finished",
		"tree_id", a.cfg.ID,
		"cutoff", report.Cutoff,
		"dry_run", dryRun,
		"courses", report.MovedCount(),
	)
	return report, nil
}

func (a *Archiver) archiveYear(ctx context.Context, year int, dryRun bool) (YearReport, error) {
	yr := YearReport{Year: year}
	title := strconv.Itoa(year)

	targetID, err := a.catalog.FindChildByTitle(ctx, a.cfg.ID, a.cfg.ArchiveCategoryID, a.cfg.CategoryType, title)
	if errors.Is(err, tree.ErrNodeNotFound) {
		a.logger.Warn("archive category missing, skipping", "year", year)
		yr.Outcome = OutcomeSkipped
		yr.Reason = fmt.Sprintf("no archive category titled %q", title)
		return yr, nil
	}
	if err != nil {
		return yr, fmt.Errorf("find archive category %d: %w", year, err)
	}
	yr.TargetID = targetID

	courses, err := a.catalog.ChildrenInYear(ctx, a.cfg.ID, a.cfg.MainCategoryID, a.cfg.CourseType, year)
	if err != nil {
		return yr, fmt.Errorf("list courses of %d: %w", year, err)
	}

	if dryRun {
		yr.Outcome = OutcomePlanned
		yr.Moved = courses
		return yr, nil
	}

	yr.Outcome = OutcomeMoved
	for _, c := range courses {
		_, err := a.relocator.Relocate(ctx, c.ID, targetID, a.cfg.ID)
		switch {
		case err == nil:
			yr.Moved = append(yr.Moved, c)
		case errors.Is(err, tree.ErrRelocationFailed):
			return yr, err
		default:
			a.logger.Warn("course not moved", "course_id", c.ID, "year", year, "error", err)
			yr.Rejected = append(yr.Rejected, Rejection{Course: c, Error: err.Error()})
		}
	}
	a.logger.Info("archived year", "year", year, "target_id", targetID, "moved", len(yr.Moved))
	return yr, nil
}

// EmptyCourses lists courses in the main category whose subtree holds only
// bookkeeping nodes.
func (a *Archiver) EmptyCourses(ctx context.Context) ([]tree.Child, error) {
	courses, err := a.catalog.EmptyChildren(ctx, a.cfg.ID, a.cfg.MainCategoryID, a.cfg.CourseType, a.cfg.BookkeepingType)
	if err != nil {
		return nil, fmt.Errorf("list empty courses: %w", err)
	}
	return courses, nil
}
