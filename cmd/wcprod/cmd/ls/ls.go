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

package ls

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/nlnwa/wcprod"
	"github.com/nlnwa/wcprod/cmd/wcprod/internal"
	"github.com/spf13/cobra"
)

type conf struct {
	recordCount int
	fileName    string
}

func NewCommand() *cobra.Command {
	c := &conf{}
	var cmd = &cobra.Command{
		Use:   "ls <archive>",
		Short: "List production records in a release",
		Long:  ``,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return internal.BindFlags(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("missing file name")
			}
			c.fileName = args[0]
			return runE(c, os.Stdout, os.Stderr)
		},
	}

	cmd.Flags().IntVarP(&c.recordCount, "record-count", "c", 0, "The maximum number of records to show")
	internal.AddPipelineFlags(cmd)

	return cmd
}

func runE(c *conf, out, errOut io.Writer) error {
	opts, err := internal.PipelineOptions()
	if err != nil {
		return err
	}
	pr, err := wcprod.NewProductionFileReader(c.fileName, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = pr.Close() }()

	red := color.New(color.FgRed)
	count := 0
	var fatal error
	for rec, err := range pr.All() {
		if err != nil {
			_, _ = red.Fprintf(errOut, "Error: %v\n", err)
			if !wcprod.IsRecoverable(err) {
				fatal = err
			}
			continue
		}
		count++
		printRecord(out, rec)

		if c.recordCount > 0 && count >= c.recordCount {
			break
		}
	}
	fmt.Fprintln(errOut, "Count: ", count)
	return fatal
}

func printRecord(out io.Writer, rec *wcprod.Record) {
	vols := make([]string, len(rec.Volumes))
	for i, v := range rec.Volumes {
		vols[i] = v.String()
	}
	pool := internal.CropString(rec.PoolID, 12)
	fmt.Fprintf(out, "%9d %s %s %-12s %s\n", rec.Index, rec.API, rec.Period, pool, strings.Join(vols, " "))
}
