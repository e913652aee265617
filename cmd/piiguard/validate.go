package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/piiguard/internal/config"
	"github.com/fyrsmithlabs/piiguard/internal/detector"
	"github.com/fyrsmithlabs/piiguard/internal/entities"
	piihttp "github.com/fyrsmithlabs/piiguard/internal/http"
	"github.com/fyrsmithlabs/piiguard/internal/outcome"
	"github.com/fyrsmithlabs/piiguard/internal/validator"
)

type validateOptions struct {
	entities   string
	mode       string
	streaming  bool
	local      bool
	configPath string
}

var validateOpts validateOptions

func init() {
	f := validateCmd.Flags()
	f.StringVarP(&validateOpts.entities, "entities", "e", "", `group alias or comma-separated entity types (e.g. "spi" or "EMAIL_ADDRESS,PERSON")`)
	f.StringVarP(&validateOpts.mode, "mode", "m", "", "fix, exception or report (default: server setting)")
	f.BoolVar(&validateOpts.streaming, "streaming", false, "validate only the last sentence")
	f.BoolVar(&validateOpts.local, "local", false, "run the built-in detectors in-process instead of calling the server")
	f.StringVar(&validateOpts.configPath, "config", "", "config file for --local")
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate text from a file or stdin",
	Long: `Validate text from a file or stdin and print the result as JSON.

In exception mode the command fails when PII is found.

Examples:
  # Validate a file against the pii group
  piiguard validate notes.txt --entities pii

  # Report spans for sensitive identifiers from stdin
  echo "SSN 078-05-1120" | piiguard validate - --entities spi --mode report

  # No server needed
  piiguard validate --local --entities EMAIL_ADDRESS notes.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	text, err := readInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var results []validator.Result
	if validateOpts.local {
		results, err = validateLocal(ctx, text, validateOpts)
	} else {
		results, err = validateRemote(ctx, serverURL, text, validateOpts)
	}
	if len(results) > 0 {
		if perr := outputJSON(cmd.OutOrStdout(), piihttp.ValidateResponse{Results: results}); perr != nil {
			return perr
		}
	}
	return err
}

func readInput(args []string, stdin io.Reader) (string, error) {
	var content []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		content, err = os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return "", errors.New("no content to validate")
	}
	return string(content), nil
}

// entitySelector turns the --entities flag into the request form: a list
// when it holds a comma or looks like an entity type, an alias otherwise.
func entitySelector(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.Contains(s, ",") || isEntityType(s) {
		var ids []string
		for _, id := range strings.Split(s, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		return ids
	}
	return s
}

func isEntityType(s string) bool {
	hasUpper := false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case r == '_' || unicode.IsDigit(r):
		default:
			return false
		}
	}
	return hasUpper
}

func validateRemote(ctx context.Context, base, text string, opts validateOptions) ([]validator.Result, error) {
	body, err := json.Marshal(piihttp.ValidateRequest{
		Text:      text,
		Entities:  entitySelector(opts.entities),
		Mode:      opts.mode,
		Streaming: opts.streaming,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/validate", base)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var vr piihttp.ValidateResponse
		if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return vr.Results, nil
	case http.StatusUnprocessableEntity:
		var fr piihttp.FailureResponse
		if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return fr.Results, errors.New(fr.Error)
	default:
		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
}

// validateLocal runs the suite in-process with the local detector provider.
func validateLocal(ctx context.Context, text string, opts validateOptions) ([]validator.Result, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	cfg.Detector.Provider = "local"

	collab, err := detector.NewCollaborators(cfg.Detector)
	if err != nil {
		return nil, err
	}
	resolver, err := loadResolver(cfg.Entities.GroupsFile)
	if err != nil {
		return nil, err
	}
	suite, err := validator.NewSuite(collab.Analyzer, collab.Anonymizer,
		validator.WithLanguage(cfg.Validation.Language),
		validator.WithResolver(resolver),
	)
	if err != nil {
		return nil, err
	}

	modeName := opts.mode
	if modeName == "" {
		modeName = cfg.Validation.Mode
	}
	mode, err := outcome.ParseMode(modeName)
	if err != nil {
		return nil, err
	}
	v, err := suite.For(opts.streaming, mode)
	if err != nil {
		return nil, err
	}

	raw := entitySelector(opts.entities)
	if raw == nil {
		return nil, fmt.Errorf("%w: --entities is required", validator.ErrInput)
	}
	sel, err := entities.ParseSelector(raw)
	if err != nil {
		return nil, err
	}

	results, err := validator.ValidateBatch(ctx, v, []string{text}, sel)
	if err != nil {
		return results, err
	}
	for _, r := range results {
		if ferr := r.Err(); ferr != nil {
			return results, ferr
		}
	}
	return results, nil
}
