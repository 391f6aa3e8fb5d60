package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/OFFIS-RIT/dematel/internal/util"
	"github.com/OFFIS-RIT/dematel/pkg/report"
	"github.com/OFFIS-RIT/dematel/pkg/survey"
	"github.com/OFFIS-RIT/dematel/pkg/transport"
	"github.com/OFFIS-RIT/dematel/pkg/tree"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "dematel",
		Short:        "Offline tooling for DEMATEL questionnaires",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		newQuestionsCmd(),
		newProgressCmd(),
		newMatricesCmd(),
		newPackCmd(),
		newUnpackCmd(),
		newSnapshotCmd(),
	)
	return rootCmd
}

func newQuestionsCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "List the pairwise questions of a survey structure file",
		RunE: func(cmd *cobra.Command, args []string) error {
			questions, _, err := loadQuestions(configPath)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), questions)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "dematel-structure.json", "survey structure file (.json or .yaml)")
	return cmd
}

func newProgressCmd() *cobra.Command {
	var configPath, sessionPath string
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Report how much of a saved session is answered",
		RunE: func(cmd *cobra.Command, args []string) error {
			questions, _, err := loadQuestions(configPath)
			if err != nil {
				return err
			}
			session, err := survey.LoadSession(sessionPath)
			if err != nil {
				return err
			}
			type progressReport struct {
				survey.Progress
				Next int `json:"next"`
			}
			return writeJSON(cmd.OutOrStdout(), progressReport{
				Progress: survey.ComputeProgress(questions, session.Answers),
				Next:     survey.NextUnanswered(questions, session.Answers),
			})
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "dematel-structure.json", "survey structure file (.json or .yaml)")
	cmd.Flags().StringVar(&sessionPath, "answers", "", "saved session file")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

func newMatricesCmd() *cobra.Command {
	var inPath, tz string
	cmd := &cobra.Command{
		Use:   "matrices",
		Short: "Render the workbook of a submitted payload as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(inPath)
			if err != nil {
				return err
			}
			payload, err := tree.ParseObject(data)
			if err != nil {
				return fmt.Errorf("parse submission: %w", err)
			}

			loc := util.GetEnvLocation("REPORT_TZ")
			if tz != "" {
				if loc, err = timeLocation(tz); err != nil {
					return err
				}
			}

			surveyID, _ := payload.Get("surveyId")
			wb := report.BuildWorkbook(report.CellText(surveyID), payload, loc)
			out, err := wb.CSV()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "-", "submission JSON, - for stdin")
	cmd.Flags().StringVar(&tz, "tz", "", "IANA zone for start and end times (default REPORT_TZ)")
	return cmd
}

func newPackCmd() *cobra.Command {
	var configPath, inPath, recordPath string
	var budget int
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Pack a saved session or an exported record into transport segments",
		RunE: func(cmd *cobra.Command, args []string) error {
			var record transport.Record
			var err error
			if recordPath != "" {
				record, err = loadSnapshot(recordPath)
			} else {
				record, err = loadRecord(configPath, inPath)
			}
			if err != nil {
				return err
			}
			packed, err := transport.NewPacker(budget).Pack(record)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), packed.Segments)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "dematel-structure.json", "survey structure file (.json or .yaml)")
	cmd.Flags().StringVar(&inPath, "in", "-", "saved session file, - for stdin")
	cmd.Flags().StringVar(&recordPath, "record", "", "record exported by snapshot, used instead of --in")
	cmd.Flags().IntVar(&budget, "budget", util.GetEnvInt("SEGMENT_BUDGET", transport.DefaultBudget), "serialized size limit per segment")
	return cmd
}

func newUnpackCmd() *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "unpack",
		Short: "Reassemble transport segments into a record",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(inPath)
			if err != nil {
				return err
			}
			var segments []transport.Segment
			if err := json.Unmarshal(data, &segments); err != nil {
				return fmt.Errorf("decode segments: %w", err)
			}
			record, err := transport.NewUnpacker().Unpack(segments)
			if err != nil {
				return err
			}
			return writeSnapshot(cmd.OutOrStdout(), record)
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "-", "JSON array of segments, - for stdin")
	return cmd
}

func newSnapshotCmd() *cobra.Command {
	var configPath, inPath string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export a saved session as an indented record",
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := loadRecord(configPath, inPath)
			if err != nil {
				return err
			}
			return writeSnapshot(cmd.OutOrStdout(), record)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "dematel-structure.json", "survey structure file (.json or .yaml)")
	cmd.Flags().StringVar(&inPath, "in", "-", "saved session file, - for stdin")
	return cmd
}

func loadQuestions(configPath string) ([]survey.PairwiseQuestion, *survey.Loaded, error) {
	loaded, err := survey.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	questions, err := survey.Generate(loaded.Config.Dimensions)
	if err != nil {
		return nil, nil, err
	}
	return questions, loaded, nil
}

func loadRecord(configPath, inPath string) (transport.Record, error) {
	questions, loaded, err := loadQuestions(configPath)
	if err != nil {
		return transport.Record{}, err
	}
	data, err := readInput(inPath)
	if err != nil {
		return transport.Record{}, err
	}
	session, err := survey.ParseSession(data)
	if err != nil {
		return transport.Record{}, err
	}
	if err := survey.ValidateBasicInfo(loaded.Config.BasicInfo, session.BasicInfo); err != nil {
		return transport.Record{}, err
	}
	if session.ID == "" {
		session.ID = survey.NewSurveyID()
	}
	if session.ConfigDigest == "" {
		session.ConfigDigest = loaded.Digest
	}
	return transport.NewRecord(session, questions), nil
}

func loadSnapshot(path string) (transport.Record, error) {
	data, err := readInput(path)
	if err != nil {
		return transport.Record{}, err
	}
	return transport.ParseSnapshot(data)
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func writeSnapshot(w io.Writer, r transport.Record) error {
	out, err := transport.Snapshot(r)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func timeLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", name, err)
	}
	return loc, nil
}
