/*
 * Copyright 2021 National Library of Norway.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *       http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/nlnwa/wcprod"
	"github.com/nlnwa/wcprod/cmd/wcprod/internal"
	"github.com/nlnwa/wcprod/pkg/pivot"
	"github.com/nlnwa/wcprod/pkg/sink"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type conf struct {
	fileName      string
	format        string
	output        string
	pivotDir      string
	batchSize     int
	progressEvery int64
}

func NewCommand() *cobra.Command {
	c := &conf{}
	cmd := &cobra.Command{
		Use:   "extract <archive>",
		Short: "Convert a release to tsv, sqlite or a pivot table",
		Long: `Extract reads every production record in a release and writes it to the chosen output.

Formats:
  tsv     one line per record
  sqlite  one row per reported volume in the table production
  pivot   one line per well and month with oil, gas and water columns`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return internal.BindFlags(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("missing file name")
			}
			c.fileName = args[0]
			c.format = viper.GetString("format")
			c.output = viper.GetString("output")
			c.pivotDir = viper.GetString("pivot-dir")
			c.batchSize = viper.GetInt("batch-size")
			c.progressEvery = viper.GetInt64("progress-every")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runE(ctx, c)
		},
	}

	cmd.Flags().StringP("format", "f", "tsv", "output format: tsv, sqlite or pivot")
	cmd.Flags().StringP("output", "o", "-", "output file, - writes tsv and pivot output to stdout")
	cmd.Flags().String("pivot-dir", "", "directory for the pivot table store (default is a temporary directory)")
	cmd.Flags().Int("batch-size", sink.DefaultBatchSize, "rows per transaction for sqlite output")
	cmd.Flags().Int64("progress-every", 100000, "log progress every n records, 0 disables")
	internal.AddPipelineFlags(cmd)

	return cmd
}

// aborter is implemented by sinks which can discard their output.
type aborter interface {
	Abort() error
}

func runE(ctx context.Context, c *conf) error {
	opts, err := internal.PipelineOptions()
	if err != nil {
		return err
	}
	pr, err := wcprod.NewProductionFileReader(c.fileName, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = pr.Close() }()

	out, err := openSink(c)
	if err != nil {
		return err
	}

	logger := log.WithFields(log.Fields{
		"run":    uuid.New().String(),
		"file":   c.fileName,
		"entry":  pr.Name(),
		"format": c.format,
	})
	logger.Info("Starting extraction")

	progress := &progressSink{Sink: out, every: c.progressEvery, report: func(n int64) {
		read, size := pr.Progress()
		cur := pr.Cursor()
		f := log.Fields{
			"records": n,
			"errors":  cur.RecordErrors,
			"bytes":   cur.BytesRead,
		}
		if size > 0 {
			f["percent"] = fmt.Sprintf("%.1f", float64(read)*100/float64(size))
		}
		logger.WithFields(f).Info("Progress")
	}}
	onRecordError := func(err error) {
		logger.Warn(err)
	}

	summary, err := wcprod.ExtractTo(ctx, pr, progress, onRecordError)
	if err != nil {
		if a, ok := out.(aborter); ok {
			err = errors.Join(err, a.Abort())
		} else {
			err = errors.Join(err, out.Close())
		}
		logger.WithError(err).WithField("cursor", pr.Cursor().String()).Error("Extraction failed")
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	logger.WithFields(log.Fields{
		"records":  summary.Records,
		"errors":   summary.RecordErrors,
		"filtered": pr.Cursor().Filtered,
	}).Info("Extraction complete")
	return nil
}

func openSink(c *conf) (wcprod.Sink, error) {
	switch c.format {
	case "tsv":
		if c.output == "-" {
			return sink.NewTSVWriter(os.Stdout), nil
		}
		return sink.NewFileSink(c.output, func(w io.Writer) wcprod.Sink {
			return sink.NewTSVWriter(w)
		})
	case "sqlite":
		if c.output == "-" {
			return nil, errors.New("sqlite output needs a file name")
		}
		return sink.OpenSQLite(c.output, c.batchSize)
	case "pivot":
		t, err := pivot.Open(c.pivotDir)
		if err != nil {
			return nil, err
		}
		return &pivotSink{Table: t, output: c.output}, nil
	}
	return nil, fmt.Errorf("unknown format '%s'", c.format)
}

// pivotSink writes the table to its output when closed.
type pivotSink struct {
	*pivot.Table
	output string
}

func (p *pivotSink) Close() error {
	return errors.Join(p.writeOutput(), p.Table.Close())
}

func (p *pivotSink) Abort() error {
	return p.Table.Close()
}

func (p *pivotSink) writeOutput() error {
	log.Debugf("writing %d pivot rows", p.Rows())
	if p.output == "-" {
		_, err := p.WriteTo(os.Stdout)
		return err
	}
	f, err := sink.CreateAtomic(p.output)
	if err != nil {
		return err
	}
	if _, err := p.WriteTo(f); err != nil {
		return errors.Join(err, f.Abort())
	}
	return f.Close()
}

// progressSink calls report after every n records written.
type progressSink struct {
	wcprod.Sink
	every  int64
	n      int64
	report func(n int64)
}

func (p *progressSink) Write(rec *wcprod.Record) error {
	if err := p.Sink.Write(rec); err != nil {
		return err
	}
	p.n++
	if p.every > 0 && p.n%p.every == 0 {
		p.report(p.n)
	}
	return nil
}
