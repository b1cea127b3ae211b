// Package capture produces a raster image for a selected region by trying
// an ordered chain of capture strategies. The first strategy to succeed
// wins; when every strategy fails the chain reports the last error.
package capture

import (
	"context"
	"image"

	"github.com/sirupsen/logrus"

	"go-region-annotator/internal/apperrors"
	"go-region-annotator/internal/logger"
	"go-region-annotator/pkg/geometry"
)

// Result is the raster produced for one region. It is owned by the
// invocation that produced it and consumed once by crop editor setup.
type Result struct {
	Image           image.Image
	SourceSurfaceID string
	// Strategy names the chain link that produced the image.
	Strategy string
}

// Strategy is one capture method in the chain.
type Strategy interface {
	Capture(ctx context.Context, rect geometry.Rect) (Result, error)
	Name() string
}

// Chain tries strategies in fixed priority order.
type Chain struct {
	strategies []Strategy
	log        *logrus.Entry
}

// NewChain builds a chain over the given strategies, in attempt order.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{
		strategies: strategies,
		log:        logger.ForComponent("capture"),
	}
}

// Capture attempts each strategy in order for the given viewport-relative
// rectangle.
func (c *Chain) Capture(ctx context.Context, rect geometry.Rect) (Result, error) {
	if rect.IsEmpty() {
		return Result{}, apperrors.NewGeometryError("capture rectangle has no area", nil)
	}

	var lastErr error
	for _, s := range c.strategies {
		res, err := s.Capture(ctx, rect)
		if err == nil {
			res.Strategy = s.Name()
			c.log.WithFields(logrus.Fields{
				"strategy": s.Name(),
				"w":        rect.W,
				"h":        rect.H,
			}).Debug("Capture strategy succeeded")
			return res, nil
		}
		lastErr = err
		c.log.WithError(err).WithField("strategy", s.Name()).Warn("Capture strategy failed")
	}
	return Result{}, apperrors.NewCaptureError("all capture strategies failed", lastErr)
}
