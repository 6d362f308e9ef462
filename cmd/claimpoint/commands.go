package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"claimpoint/internal"
	"claimpoint/internal/export"
	"claimpoint/internal/intake"
	"claimpoint/internal/mapping"
	"claimpoint/internal/sheets"
	"claimpoint/internal/util"
)

func sheetColumnsCmd() *cobra.Command {
	var sheet string
	cmd := &cobra.Command{
		Use:   "sheet:columns <file>",
		Short: "Print the detected column labels of each sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := sheets.DecodeFile(args[0])
			if err != nil {
				return err
			}
			if sheet != "" && !wb.HasSheet(sheet) {
				return fmt.Errorf("%w: %s", sheets.ErrUnknownSheet, sheet)
			}
			for _, s := range wb.Sheets() {
				if sheet != "" && s.Name != sheet {
					continue
				}
				if errors.Is(s.Err, sheets.ErrNoHeaderRow) {
					fmt.Printf("%s: (empty sheet)\n", s.Name)
					continue
				}
				if s.Err != nil {
					return s.Err
				}
				fmt.Printf("%s: %s\n", s.Name, strings.Join(s.Columns, " | "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "only this sheet")
	return cmd
}

// parsePair reads "[Sheet!]Source=Target".
func parsePair(value, defaultSheet string) (sheet, source, target string, err error) {
	idx := strings.LastIndex(value, "=")
	if idx <= 0 || idx == len(value)-1 {
		return "", "", "", fmt.Errorf("invalid pair %q, want [Sheet!]Source=Target", value)
	}
	left, target := value[:idx], strings.TrimSpace(value[idx+1:])
	sheet = defaultSheet
	if s, src, ok := strings.Cut(left, "!"); ok {
		sheet, left = s, src
	}
	return sheet, strings.TrimSpace(left), target, nil
}

func templateMapCmd() *cobra.Command {
	var (
		name    string
		pairs   []string
		suggest bool
	)
	cmd := &cobra.Command{
		Use:   "template:map <file>",
		Short: "Map a workbook's columns to canonical fields and save the mapping as a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			wb, err := sheets.DecodeFile(args[0])
			if err != nil {
				return err
			}

			session := mapping.NewSession(logger)
			session.OnDuplicateTarget(func(d mapping.DuplicateTarget) {
				fmt.Fprintf(os.Stderr, "warning: %s: %s is mapped from %s\n", d.Sheet, d.Target, strings.Join(d.Sources, ", "))
			})
			if err := session.Open(wb); err != nil && !errors.Is(err, sheets.ErrNoHeaderRow) {
				return err
			}

			if suggest {
				for _, sheet := range wb.SheetNames {
					if err := session.SelectSheet(sheet); err != nil {
						logger.Debug("sheet skipped for suggestions", zap.String("sheet", sheet), zap.Error(err))
						continue
					}
					for _, p := range session.Suggest() {
						fmt.Printf("suggested %s: %s -> %s\n", sheet, p.Source, p.Target)
					}
				}
			}

			for _, raw := range pairs {
				sheet, source, target, err := parsePair(raw, wb.SheetNames[0])
				if err != nil {
					return err
				}
				if session.ActiveSheet() != sheet {
					if err := session.SelectSheet(sheet); err != nil {
						return err
					}
				}
				if _, err := session.Pick(source, mapping.SideSource); err != nil {
					return err
				}
				if _, err := session.Pick(target, mapping.SideTarget); err != nil {
					return err
				}
			}

			if err := session.Complete(); err != nil {
				return err
			}
			final := session.Finalize()
			if final.PairCount() == 0 {
				fmt.Fprintln(os.Stderr, "warning: saving a template with no mapped columns")
			}

			store, _, cleanup, err := openTemplateStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			id, err := store.Save(ctx, name, final)
			if err != nil {
				return err
			}
			session.Close()

			fmt.Printf("template saved name=%s id=%s pairs=%d\n", strings.TrimSpace(name), id, final.PairCount())
			for _, sheet := range wb.SheetNames {
				for _, a := range mapping.ColorPairs(final[sheet]) {
					fmt.Printf("  %s %s: %s -> %s\n", a.Color, sheet, a.Source, a.Target)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "template name")
	cmd.Flags().StringArrayVar(&pairs, "pair", nil, "column pair [Sheet!]Source=Target, repeatable")
	cmd.Flags().BoolVar(&suggest, "suggest", false, "pre-pair columns whose labels match a canonical field")
	return cmd
}

func templateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template:list",
		Short: "List saved template names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, cleanup, err := openTemplateStore(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			names, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
}

func templateLastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template:last",
		Short: "Print the most recently saved template name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, cleanup, err := openTemplateStore(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			name, ok := store.LastSaved()
			if !ok {
				return errors.New("no template saved yet")
			}
			fmt.Println(name)
			return nil
		},
	}
}

func templateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template:show <name>",
		Short: "Print a template's mappings as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, cleanup, err := openTemplateStore(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			t, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			blob, err := json.MarshalIndent(t.Mappings, "", "  ")
			if err != nil {
				return err
			}
			fmt.Printf("# %s id=%s created=%s\n%s\n", t.Name, t.ID, t.CreatedAt, blob)
			return nil
		},
	}
}

type policySeed struct {
	Policies []struct {
		Name           string   `yaml:"name"`
		Administrators []string `yaml:"administrators"`
	} `yaml:"policies"`
}

// seedRecords turns a policy seed file into policies table rows.
func seedRecords(blob []byte) ([]internal.Record, error) {
	var seed policySeed
	if err := yaml.Unmarshal(blob, &seed); err != nil {
		return nil, fmt.Errorf("parse policy seed: %w", err)
	}

	records := make([]internal.Record, 0, len(seed.Policies))
	for i, p := range seed.Policies {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("policy %d: name is required", i+1)
		}
		if len(p.Administrators) > 2 {
			return nil, fmt.Errorf("policy %q: at most two administrators", p.Name)
		}
		record := internal.Record{"name": strings.TrimSpace(p.Name)}
		for j, admin := range p.Administrators {
			record[fmt.Sprintf("claim_admin_%d", j+1)] = strings.TrimSpace(admin)
		}
		records = append(records, record)
	}
	return records, nil
}

func policySeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policy:seed <file.yaml>",
		Short: "Insert policies and their claim administrators from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			records, err := seedRecords(blob)
			if err != nil {
				return err
			}

			store, closeStore, err := openRecordStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			stored, err := store.Insert(cmd.Context(), internal.TablePolicies, records)
			if err != nil {
				return internal.NewPersistenceError("insert", internal.TablePolicies, err)
			}
			fmt.Printf("policies seeded: %d\n", len(stored))
			return nil
		},
	}
}

func parseOptionalDate(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	d, err := util.ParseDate(value)
	if err != nil {
		return nil, internal.NewValidationError("date", err.Error())
	}
	return &d, nil
}

func intakeSubmitCmd() *cobra.Command {
	var (
		policyholder, administrator, templateName string
		paidFrom, paidTo, received, description   string
		file                                      string
	)
	cmd := &cobra.Command{
		Use:   "intake:submit",
		Short: "Validate and submit a claim batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, records, cleanup, err := openTemplateStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if templateName == "" {
				if last, ok := store.LastSaved(); ok {
					templateName = last
					fmt.Printf("using last saved template %s\n", last)
				}
			}
			if templateName != "" {
				names, err := store.List(ctx)
				if err != nil {
					return err
				}
				if !slices.Contains(names, templateName) {
					return internal.NewValidationError("template", fmt.Sprintf("unknown template %q", templateName))
				}
			}

			controller := intake.NewController(intake.RecordSubmitter{Records: records}, logger)
			if err := controller.LoadPolicies(ctx, records); err != nil {
				return err
			}
			if err := controller.Start(); err != nil {
				return err
			}

			edits := []intake.Edit{intake.Template(templateName), intake.Description(description)}
			if policyholder != "" {
				edits = append(edits, intake.Policyholder(policyholder))
			}
			if administrator != "" {
				edits = append(edits, intake.Administrator(administrator))
			}
			for _, d := range []struct {
				value string
				edit  func(time.Time) intake.Edit
			}{{paidFrom, intake.PaidFrom}, {paidTo, intake.PaidTo}} {
				parsed, err := parseOptionalDate(d.value)
				if err != nil {
					return err
				}
				if parsed != nil {
					edits = append(edits, d.edit(*parsed))
				}
			}
			receivedDate, err := parseOptionalDate(received)
			if err != nil {
				return err
			}
			edits = append(edits, intake.ReceivedDate(receivedDate))

			if file != "" {
				info, err := os.Stat(file)
				if err != nil {
					return err
				}
				edits = append(edits, intake.File(internal.FileRef{Name: filepath.Base(file), Size: info.Size()}))
			}

			if err := controller.Edit(edits...); err != nil {
				return err
			}
			id, err := controller.Upload(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("claim batch submitted id=%s\n", id)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&policyholder, "policyholder", "", "policyholder name")
	flags.StringVar(&administrator, "admin", "", "claim administrator of the policyholder")
	flags.StringVar(&templateName, "template", "", "template name (defaults to the last saved template)")
	flags.StringVar(&paidFrom, "paid-from", "", "claims paid from date")
	flags.StringVar(&paidTo, "paid-to", "", "claims paid to date")
	flags.StringVar(&received, "received", "", "date the file was received")
	flags.StringVar(&description, "description", "", "free-text description")
	flags.StringVar(&file, "file", "", "claim file path")
	return cmd
}

func exportClaimsCmd() *cobra.Command {
	var (
		templateName string
		out          string
	)
	cmd := &cobra.Command{
		Use:   "export:claims <file>",
		Short: "Apply a template to a workbook and write the canonical claims sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			wb, err := sheets.DecodeFile(args[0])
			if err != nil {
				return err
			}

			store, _, cleanup, err := openTemplateStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if templateName == "" {
				last, ok := store.LastSaved()
				if !ok {
					return errors.New("--template is required when no template was saved yet")
				}
				templateName = last
			}
			t, err := store.Get(ctx, templateName)
			if err != nil {
				return err
			}

			rows, err := export.MapRows(wb, t.Mappings)
			if err != nil {
				return err
			}
			if out == "" {
				base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
				out = filepath.Join(cfg.OutputDir, base+"-claims.xlsx")
			}
			if err := export.WriteXLSX(rows, out); err != nil {
				return err
			}
			fmt.Printf("export complete template=%s rows=%d file=%s\n", templateName, len(rows), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&templateName, "template", "", "template name (defaults to the last saved template)")
	cmd.Flags().StringVar(&out, "out", "", "output path")
	return cmd
}
