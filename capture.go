package pageshots

import (
	"context"

	"github.com/root4loot/goutils/log"
	"github.com/root4loot/pageshots/pkg/screener"
)

// capture runs one repository through the screener and writes its image.
// Nothing here stops the run: every failure ends up on the result.
func (r *Runner) capture(ctx context.Context, s *screener.Screener, name string) *screener.Result {
	log.Debugf("Running capture on %s", name)

	result := s.Capture(ctx, name)

	switch result.Status {
	case screener.StatusBadResponse:
		if result.StatusCode != 0 {
			log.Warnf("Skipping %s: %s returned status %d", name, result.TargetURL, result.StatusCode)
		} else {
			log.Warnf("Skipping %s: no response from %s", name, result.TargetURL)
		}
		return result
	case screener.StatusErrored:
		if screener.IsTimeout(result.Error) {
			log.Warnf("Timeout exceeded for %s (%s)", name, result.TargetURL)
		} else {
			log.Errorf("Error capturing %s: %v", name, result.Error)
		}
		return result
	}

	if r.Options.Label {
		labeled, err := result.Image.AddTextToImage(name)
		if err != nil {
			log.Warnf("Could not add label to %s: %v", name, err)
		} else {
			result.Image = labeled
		}
	}

	filename, err := result.SaveImageToFolder(r.Options.Output)
	if err != nil {
		log.Errorf("Could not save screenshot for %s: %v", name, err)
		return result
	}

	log.Infof("Screenshot of %s saved to %s", name, filename)
	return result
}
