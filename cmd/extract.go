package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/payrecon-ocr/internal/bank"
	"github.com/sells-group/payrecon-ocr/internal/extract"
)

var extractMemo string

var extractCmd = &cobra.Command{
	Use:   "extract <file|->",
	Short: "Extract payment fields from OCR text",
	Long:  "Reads OCR text from a file, or stdin when the argument is \"-\", and prints the extracted fields as JSON. With --reconcile-memo the bank fallback runs instead: a non-blank memo wins over the text.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readTextArg(cmd, args[0])
		if err != nil {
			return err
		}

		var out any
		if cmd.Flags().Changed("reconcile-memo") {
			out = bank.Reconcile(bank.Transaction{Memo: extractMemo, OCRText: text})
		} else {
			out = extract.Extract(text)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func readTextArg(cmd *cobra.Command, arg string) (string, error) {
	var (
		data []byte
		err  error
	)
	if arg == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		return "", eris.Wrapf(err, "read %s", arg)
	}
	return string(data), nil
}

func init() {
	extractCmd.Flags().StringVar(&extractMemo, "reconcile-memo", "", "bank transaction memo; reconcile instead of plain extraction")
	rootCmd.AddCommand(extractCmd)
}
