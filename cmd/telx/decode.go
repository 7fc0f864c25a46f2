package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"telxScope/internal/config"
	"telxScope/internal/model"
	"telxScope/internal/registry"
)

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	decoder, err := registry.NewDecoder(cfg.Topic0Map)
	if err != nil {
		return err
	}

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	outWriter, err := newJSONLWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := newJSONLWriter(cfg.Errors, false)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	logger.Info("decode start", zap.String("in", cfg.In), zap.String("out", cfg.Out), zap.String("errors", cfg.Errors))

	scanner := bufio.NewScanner(inputFile)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var line, decoded, skipped, failed int
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var record model.LogRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			failed++
			writeDecodeFailure(errWriter, model.DecodeFailure{Line: line, Error: err.Error()})
			continue
		}
		if record.Removed || !decoder.CanDecode(record.Topic0()) {
			skipped++
			continue
		}

		event, err := decoder.Decode(record)
		if err != nil {
			failed++
			failure := model.NewDecodeFailure(record, err)
			failure.Line = line
			writeDecodeFailure(errWriter, failure)
			continue
		}
		if err := outWriter.Write(event); err != nil {
			return err
		}
		decoded++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	logger.Info("decode complete",
		zap.Int("lines", line),
		zap.Int("decoded", decoded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}

func writeDecodeFailure(writer *jsonlWriter, failure model.DecodeFailure) {
	if writer == nil {
		return
	}
	_ = writer.Write(failure)
}
