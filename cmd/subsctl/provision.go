package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Dhoini/subscription-commerce/internal/provisioning"
	"github.com/spf13/cobra"
)

func provisionCmd(e *env) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create phone-login accounts for a batch of customers",
		Long: `Create phone-login accounts for the customers listed in a JSON file:

  [{"id": "<customer uuid>", "name": "Sara", "phone": "0501234567"}]

Generated passwords are printed once and are not stored anywhere.
Use --file - to read the list from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			requests, err := readRequests(cmd, file)
			if err != nil {
				return err
			}

			cfg, err := e.cfg()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			application, err := e.app(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			results, err := application.Provisioning.ProvisionAccounts(cmd.Context(), requests)
			if err != nil {
				return err
			}
			return printJSON(e, results)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with customers, - for stdin")
	return cmd
}

func readRequests(cmd *cobra.Command, file string) ([]provisioning.Request, error) {
	var r io.Reader
	if file == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", file, err)
		}
		defer f.Close()
		r = f
	}

	var requests []provisioning.Request
	if err := json.NewDecoder(r).Decode(&requests); err != nil {
		return nil, fmt.Errorf("failed to parse customer list: %w", err)
	}
	return requests, nil
}
