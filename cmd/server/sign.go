package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/archetypes/internal/services"
)

func newSignCmd() *cobra.Command {
	var (
		passphrase   string
		plusForSpace bool
	)
	cmd := &cobra.Command{
		Use:   "sign key=value...",
		Short: "Compute a PayFast signature, or verify one passed as signature=...",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFields(args)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("passphrase") {
				passphrase = os.Getenv("PAYFAST_PASSPHRASE")
			}
			signer := services.Signer{Passphrase: passphrase, PlusForSpace: plusForSpace}
			out := cmd.OutOrStdout()
			if _, ok := fields[services.SignatureField]; ok {
				if signer.Verify(fields) {
					fmt.Fprintln(out, "valid")
					return nil
				}
				return services.ErrInvalidSignature
			}
			fmt.Fprintln(out, signer.Sign(fields))
			return nil
		},
	}
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "merchant passphrase (default $PAYFAST_PASSPHRASE)")
	cmd.Flags().BoolVar(&plusForSpace, "plus-for-space", false, "encode spaces as + instead of %20")
	return cmd
}

func parseFields(args []string) (map[string]string, error) {
	fields := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		fields[k] = v
	}
	return fields, nil
}
