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

// Package internal holds what the wcprod subcommands share.
package internal

import (
	"fmt"

	"github.com/nlnwa/wcprod"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// AddPipelineFlags adds the flags controlling the production reader to cmd.
// They are bound to viper when the command runs, see BindFlags.
func AddPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().String("endianness", "le", "byte order used when the document has no byte-order mark: le, be or none")
	cmd.Flags().String("chunk-size", "64kb", "size of each read from the archive")
	cmd.Flags().String("max-text-run", "1mb", "maximum size of a single text run, name or attribute value")
	cmd.Flags().String("record-element", "wcproduction", "name of the element holding one record")
	cmd.Flags().Int("record-depth", 0, "depth of the record element, 0 matches any depth")
	cmd.Flags().String("on-record-error", "warn", "what to do with incomplete records: ignore, warn or fail")
	cmd.Flags().Int("state", -1, "only read wells with this API state code")
	cmd.Flags().Int("county", -1, "only read wells with this API county code")
}

// BindFlags binds the flags of cmd to viper. Subcommands share flag names, so binding is done when a
// command runs rather than when it is created.
func BindFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// PipelineOptions converts the bound pipeline flags to reader options.
func PipelineOptions() ([]wcprod.Option, error) {
	endianness, err := wcprod.ParseEndianness(viper.GetString("endianness"))
	if err != nil {
		return nil, err
	}
	policy, err := wcprod.ParseErrorPolicy(viper.GetString("on-record-error"))
	if err != nil {
		return nil, err
	}
	chunkSize := viper.GetSizeInBytes("chunk-size")
	if chunkSize == 0 {
		return nil, fmt.Errorf("invalid chunk size '%s'", viper.GetString("chunk-size"))
	}
	maxTextRun := viper.GetSizeInBytes("max-text-run")
	if maxTextRun == 0 {
		return nil, fmt.Errorf("invalid max text run '%s'", viper.GetString("max-text-run"))
	}

	opts := []wcprod.Option{
		wcprod.WithDefaultEndianness(endianness),
		wcprod.WithMaxChunkBytes(int(chunkSize)),
		wcprod.WithMaxTextRunBytes(int(maxTextRun)),
		wcprod.WithRecordElement(viper.GetString("record-element")),
		wcprod.WithRecordDepth(viper.GetInt("record-depth")),
		wcprod.WithRecordErrorPolicy(policy),
	}
	if filter := WellFilter(viper.GetInt("state"), viper.GetInt("county")); filter != nil {
		opts = append(opts, wcprod.WithWellFilter(filter))
	}
	return opts, nil
}

// WellFilter returns a filter accepting wells in the given state and county. A negative code matches
// everything. If both codes are negative, nil is returned.
func WellFilter(state, county int) func(wcprod.WellAPI) bool {
	if state < 0 && county < 0 {
		return nil
	}
	return func(api wcprod.WellAPI) bool {
		if state >= 0 && int(api.State) != state {
			return false
		}
		if county >= 0 && int(api.County) != county {
			return false
		}
		return true
	}
}

// CropString shortens s to at most length runes, marking a cut with "...".
func CropString(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	if length <= 3 {
		return string(r[:length])
	}
	return string(r[:length-3]) + "..."
}
