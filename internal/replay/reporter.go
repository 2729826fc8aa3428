package replay

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Reporter writes replay results to disk in several formats.
type Reporter struct {
	results    *Results
	outputPath string
}

// NewReporter creates a reporter writing under outputPath.
func NewReporter(results *Results, outputPath string) *Reporter {
	return &Reporter{results: results, outputPath: outputPath}
}

// GenerateReport writes the summary, the per-game log for the best version,
// and the full JSON document.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}
	if err := r.generateGameLog(); err != nil {
		return err
	}
	return r.generateJSON()
}

func (r *Reporter) generateSummary() error {
	path := filepath.Join(r.outputPath, "replay_summary.txt")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary file: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "MODEL REPLAY SUMMARY\n")
	fmt.Fprintf(file, "====================\n\n")
	fmt.Fprintf(file, "Sport: %s\n", r.results.Sport)
	fmt.Fprintf(file, "Target: %s\n", r.results.Target)
	fmt.Fprintf(file, "Window: %s to %s\n",
		r.results.StartTime.Format("2006-01-02"),
		r.results.EndTime.Format("2006-01-02"))
	fmt.Fprintf(file, "Games: %d\n\n", r.results.Games)

	fmt.Fprintf(file, "PER-VERSION METRICS\n")
	fmt.Fprintf(file, "-------------------\n")
	for _, version := range r.sortedVersions() {
		vr := r.results.Versions[version]
		fmt.Fprintf(file, "%s: accuracy %.3f, precision %.3f, recall %.3f, F1 %.3f, AUC %.3f",
			version, vr.Report.Accuracy, vr.Report.Precision,
			vr.Report.Recall, vr.Report.F1, vr.Report.ROCAUC)
		if vr.Skipped > 0 {
			fmt.Fprintf(file, " (%d skipped)", vr.Skipped)
		}
		fmt.Fprintln(file)
	}

	if best := r.results.Best(); best != nil {
		fmt.Fprintf(file, "\nBest version: %s (F1 %.3f)\n", best.Version, best.Report.F1)
	}

	log.Info().Str("file", path).Msg("replay summary written")
	return nil
}

// generateGameLog writes the best version's per-game outcomes as CSV.
func (r *Reporter) generateGameLog() error {
	best := r.results.Best()
	if best == nil {
		return nil
	}

	path := filepath.Join(r.outputPath, "game_log.csv")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create game log: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"id", "gameTime", "homeTeam", "awayTeam", "probability", "predicted", "actual", "hit"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, g := range best.Games {
		row := []string{
			g.ID,
			g.GameTime.Format("2006-01-02 15:04:05"),
			g.HomeTeam,
			g.AwayTeam,
			strconv.FormatFloat(g.Probability, 'f', 4, 64),
			strconv.FormatBool(g.Predicted),
			strconv.FormatBool(g.Actual),
			strconv.FormatBool(g.Predicted == g.Actual),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	log.Info().Str("file", path).Str("version", best.Version).Msg("game log written")
	return nil
}

func (r *Reporter) generateJSON() error {
	path := filepath.Join(r.outputPath, "replay.json")
	blob, err := json.MarshalIndent(r.results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal replay results: %w", err)
	}
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return fmt.Errorf("write JSON report: %w", err)
	}
	log.Info().Str("file", path).Msg("JSON report written")
	return nil
}

func (r *Reporter) sortedVersions() []string {
	versions := make([]string, 0, len(r.results.Versions))
	for v := range r.results.Versions {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}
