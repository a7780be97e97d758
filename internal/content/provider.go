package content

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/abhisek/prepcoach/internal/progress"
)

// ErrNotFound is returned when a stage, day or final test does not exist.
var ErrNotFound = errors.New("content not found")

// Provider serves curriculum content to the engine.
type Provider interface {
	Stages(ctx context.Context) ([]Stage, error)
	StageIndex(ctx context.Context, stageID string) (int, error)
	GetStageDays(ctx context.Context, stageID string) ([]Day, error)
	GetDayQuestions(ctx context.Context, stageID string, dayNumber int) ([]Question, error)
	GetStageFinalTest(ctx context.Context, stageIndex int) (*FinalTest, error)
}

// Catalog is an in-memory Provider over a validated Bundle.
type Catalog struct {
	bundle  *Bundle
	byStage map[string]int
}

var _ Provider = (*Catalog)(nil)

// NewCatalog indexes a bundle for lookups.
func NewCatalog(b *Bundle) *Catalog {
	c := &Catalog{bundle: b, byStage: make(map[string]int, len(b.Stages))}
	for i, s := range b.Stages {
		c.byStage[s.ID] = i
	}
	return c
}

// JourneyID returns the bundle's journey id.
func (c *Catalog) JourneyID() string {
	return c.bundle.JourneyID
}

func (c *Catalog) Stages(ctx context.Context) ([]Stage, error) {
	return slices.Clone(c.bundle.Stages), nil
}

func (c *Catalog) StageIndex(ctx context.Context, stageID string) (int, error) {
	i, ok := c.byStage[stageID]
	if !ok {
		return -1, fmt.Errorf("stage %q: %w", stageID, ErrNotFound)
	}
	return i, nil
}

func (c *Catalog) GetStageDays(ctx context.Context, stageID string) ([]Day, error) {
	i, err := c.StageIndex(ctx, stageID)
	if err != nil {
		return nil, err
	}
	return sortedDays(c.bundle.Stages[i].Days), nil
}

func (c *Catalog) GetDayQuestions(ctx context.Context, stageID string, dayNumber int) ([]Question, error) {
	days, err := c.GetStageDays(ctx, stageID)
	if err != nil {
		return nil, err
	}
	for _, d := range days {
		if d.Number == dayNumber {
			return slices.Clone(d.Questions), nil
		}
	}
	return nil, fmt.Errorf("stage %q day %d: %w", stageID, dayNumber, ErrNotFound)
}

func (c *Catalog) GetStageFinalTest(ctx context.Context, stageIndex int) (*FinalTest, error) {
	if stageIndex < 0 || stageIndex >= len(c.bundle.Stages) {
		return nil, fmt.Errorf("final test for stage index %d: %w", stageIndex, ErrNotFound)
	}
	ft := c.bundle.Stages[stageIndex].FinalTest
	ft.Questions = slices.Clone(ft.Questions)
	return &ft, nil
}

// Outline returns the planned curriculum shape used to seed the progress tree.
func (c *Catalog) Outline() progress.Outline {
	return OutlineOf(c.bundle)
}

// OutlineOf builds a progress outline from a bundle. Day order is the lesson
// order within a stage.
func OutlineOf(b *Bundle) progress.Outline {
	out := progress.Outline{JourneyID: b.JourneyID}
	for _, s := range b.Stages {
		so := progress.StageOutline{ID: s.ID}
		for _, d := range sortedDays(s.Days) {
			so.LessonIDs = append(so.LessonIDs, d.ID)
		}
		out.Stages = append(out.Stages, so)
	}
	return out
}

func sortedDays(days []Day) []Day {
	sorted := slices.Clone(days)
	slices.SortStableFunc(sorted, func(a, b Day) int { return a.Number - b.Number })
	return sorted
}
