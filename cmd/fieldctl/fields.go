package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/artpar/fieldschema/app"
	"github.com/artpar/fieldschema/core/schema"
	"github.com/artpar/fieldschema/core/visibility"
	"github.com/spf13/cobra"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Manage fields",
	Long: `Manage the fields of a module.

System fields ship with the module and cannot be deleted; only their
visibility, placeholder and hint can change. Custom fields are fully
editable except for their key and type.

Examples:
  fieldctl fields list teacher --section personal-info
  fieldctl fields list student --role parent
  fieldctl fields add teacher personal-info --label "Blood Group" --type dropdown --options A+,B+,O+
  fieldctl fields edit teacher fld_123 --visible-to admin,principal
  fieldctl fields reorder teacher personal-info fld_123 1
  fieldctl fields delete teacher fld_123`,
}

var fieldsListCmd = &cobra.Command{
	Use:   "list <module>",
	Short: "List fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runFieldsList,
}

var fieldsAddCmd = &cobra.Command{
	Use:   "add <module> <section>",
	Short: "Add a custom field",
	Long: `Add a custom field to a section.

The key is derived from the label and never changes afterwards. Without
--visible-to the field is visible to every role of the module.`,
	Args: cobra.ExactArgs(2),
	RunE: runFieldsAdd,
}

var fieldsEditCmd = &cobra.Command{
	Use:   "edit <module> <field-id>",
	Short: "Edit a field",
	Long: `Edit a field. Only the flags given are changed.

Constraint flags replace the named constraint and keep the others.
Use --clear-constraints to start from an empty set.`,
	Args: cobra.ExactArgs(2),
	RunE: runFieldsEdit,
}

var fieldsDeleteCmd = &cobra.Command{
	Use:   "delete <module> <field-id>",
	Short: "Delete a custom field",
	Args:  cobra.ExactArgs(2),
	RunE:  runFieldsDelete,
}

var fieldsReorderCmd = &cobra.Command{
	Use:   "reorder <module> <section> <field-id> <position>",
	Short: "Move a field to a position (1 is first)",
	Args:  cobra.ExactArgs(4),
	RunE:  runFieldsReorder,
}

// fieldFlags holds the definition flags shared by add and edit.
type fieldFlags struct {
	label       string
	fieldType   string
	required    bool
	visibleTo   string
	placeholder string
	hint        string

	options        string
	multiple       bool
	min            float64
	max            float64
	maxLength      int
	minDate        string
	maxDate        string
	extensions     string
	maxSize        int64
	defaultChecked bool
}

var (
	fieldsListSection string
	fieldsListRole    string
	fieldsListTab     string

	addFlags  fieldFlags
	editFlags fieldFlags

	editClearConstraints bool
)

func init() {
	rootCmd.AddCommand(fieldsCmd)

	fieldsCmd.AddCommand(fieldsListCmd)
	fieldsCmd.AddCommand(fieldsAddCmd)
	fieldsCmd.AddCommand(fieldsEditCmd)
	fieldsCmd.AddCommand(fieldsDeleteCmd)
	fieldsCmd.AddCommand(fieldsReorderCmd)

	fieldsListCmd.Flags().StringVar(&fieldsListSection, "section", "", "only fields of this section")
	fieldsListCmd.Flags().StringVar(&fieldsListRole, "role", "", "only fields this role can see")
	fieldsListCmd.Flags().StringVar(&fieldsListTab, "tab", "", "only sections on this tab")

	bindFieldFlags(fieldsAddCmd, &addFlags)
	fieldsAddCmd.MarkFlagRequired("label")
	fieldsAddCmd.MarkFlagRequired("type")

	bindFieldFlags(fieldsEditCmd, &editFlags)
	fieldsEditCmd.Flags().BoolVar(&editClearConstraints, "clear-constraints", false, "drop all existing constraints first")
}

func bindFieldFlags(cmd *cobra.Command, f *fieldFlags) {
	flags := cmd.Flags()
	flags.StringVar(&f.label, "label", "", "field label")
	flags.StringVar(&f.fieldType, "type", "", "field type (text, number, date, dropdown, file, checkbox)")
	flags.BoolVar(&f.required, "required", false, "field must be filled in")
	flags.StringVar(&f.visibleTo, "visible-to", "", "comma-separated roles that can see the field")
	flags.StringVar(&f.placeholder, "placeholder", "", "placeholder text")
	flags.StringVar(&f.hint, "hint", "", "help text shown under the field")

	flags.StringVar(&f.options, "options", "", "dropdown options, comma-separated")
	flags.BoolVar(&f.multiple, "multiple", false, "dropdown allows several options; file allows several uploads")
	flags.Float64Var(&f.min, "min", 0, "minimum number")
	flags.Float64Var(&f.max, "max", 0, "maximum number")
	flags.IntVar(&f.maxLength, "max-length", 0, "maximum text length in characters")
	flags.StringVar(&f.minDate, "min-date", "", "earliest date (YYYY-MM-DD)")
	flags.StringVar(&f.maxDate, "max-date", "", "latest date (YYYY-MM-DD)")
	flags.StringVar(&f.extensions, "extensions", "", "allowed file extensions, comma-separated")
	flags.Int64Var(&f.maxSize, "max-size", 0, "maximum file size in bytes")
	flags.BoolVar(&f.defaultChecked, "default-checked", false, "checkbox starts checked")
}

// constraints applies the constraint flags set on cmd to base. It reports
// whether any constraint flag was given.
func (f *fieldFlags) constraints(cmd *cobra.Command, base schema.Constraints) (schema.Constraints, bool) {
	c := base.Clone()
	flags := cmd.Flags()
	changed := false
	mark := func(name string) bool {
		if flags.Changed(name) {
			changed = true
			return true
		}
		return false
	}

	if mark("options") {
		c.Options = splitList(f.options)
	}
	if mark("multiple") {
		c.AllowMultiple = f.multiple
	}
	if mark("min") {
		v := f.min
		c.Min = &v
	}
	if mark("max") {
		v := f.max
		c.Max = &v
	}
	if mark("max-length") {
		v := f.maxLength
		c.MaxLength = &v
	}
	if mark("min-date") {
		c.MinDate = f.minDate
	}
	if mark("max-date") {
		c.MaxDate = f.maxDate
	}
	if mark("extensions") {
		c.AllowedExtensions = splitList(f.extensions)
	}
	if mark("max-size") {
		v := f.maxSize
		c.MaxSizeBytes = &v
	}
	if mark("default-checked") {
		c.DefaultChecked = f.defaultChecked
	}
	return c, changed
}

// visibilityFor turns a role list into a complete visibility map.
func visibilityFor(roles []string, list string) schema.Visibility {
	v := make(schema.Visibility, len(roles))
	for _, r := range roles {
		v[r] = false
	}
	for _, r := range splitList(list) {
		v[r] = true
	}
	return v
}

func allVisible(roles []string) schema.Visibility {
	v := make(schema.Visibility, len(roles))
	for _, r := range roles {
		v[r] = true
	}
	return v
}

func runFieldsList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.Store(args[0])
	if err != nil {
		return err
	}

	sections := store.Sections()
	if fieldsListTab != "" {
		sections = store.SectionsByTab(fieldsListTab)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SECTION\t#\tID\tKEY\tLABEL\tTYPE\tREQUIRED\tSYSTEM\tVISIBLE TO")
	fmt.Fprintln(w, "-------\t-\t--\t---\t-----\t----\t--------\t------\t----------")

	for _, sec := range sections {
		if fieldsListSection != "" && sec.ID != fieldsListSection {
			continue
		}
		fields := sec.Sorted()
		if fieldsListRole != "" {
			fields = visibility.FilterVisible(fields, fieldsListRole)
		}
		for _, f := range fields {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				sec.ID,
				f.Order+1,
				f.ID,
				f.Key,
				f.Label,
				f.Type,
				yesNo(f.Required),
				yesNo(f.System),
				strings.Join(f.Visibility.Visible(), ","),
			)
		}
	}
	return w.Flush()
}

func runFieldsAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.Store(args[0])
	if err != nil {
		return err
	}

	constraints, _ := addFlags.constraints(cmd, schema.Constraints{})
	vis := allVisible(store.Roles())
	if cmd.Flags().Changed("visible-to") {
		vis = visibilityFor(store.Roles(), addFlags.visibleTo)
	}

	f, err := store.AddField(actorContext(cmd), args[1], app.FieldInput{
		Label:       addFlags.label,
		Type:        schema.FieldType(addFlags.fieldType),
		Constraints: constraints,
		Required:    addFlags.required,
		Visibility:  vis,
		Placeholder: addFlags.placeholder,
		Hint:        addFlags.hint,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Field added:")
	fmt.Fprintf(out, "  ID:    %s\n", f.ID)
	fmt.Fprintf(out, "  Key:   %s\n", f.Key)
	fmt.Fprintf(out, "  Label: %s\n", f.Label)
	fmt.Fprintf(out, "  Type:  %s\n", f.Type)
	fmt.Fprintf(out, "  Order: %d\n", f.Order+1)
	return nil
}

func runFieldsEdit(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.Store(args[0])
	if err != nil {
		return err
	}
	cur, err := store.Field(args[1])
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	var patch app.FieldPatch
	if flags.Changed("label") {
		patch.Label = &editFlags.label
	}
	if flags.Changed("type") {
		t := schema.FieldType(editFlags.fieldType)
		patch.Type = &t
	}
	if flags.Changed("required") {
		patch.Required = &editFlags.required
	}
	if flags.Changed("placeholder") {
		patch.Placeholder = &editFlags.placeholder
	}
	if flags.Changed("hint") {
		patch.Hint = &editFlags.hint
	}
	if flags.Changed("visible-to") {
		patch.Visibility = visibilityFor(store.Roles(), editFlags.visibleTo)
	}

	base := cur.Constraints
	if editClearConstraints {
		base = schema.Constraints{}
	}
	if c, changed := editFlags.constraints(cmd, base); changed || editClearConstraints {
		patch.Constraints = &c
	}

	f, err := store.EditField(actorContext(cmd), args[1], patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Field %s updated (schema version %d)\n", f.Key, store.Version())
	return nil
}

func runFieldsDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.Store(args[0])
	if err != nil {
		return err
	}
	if err := store.DeleteField(actorContext(cmd), args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Field %s deleted\n", args[1])
	return nil
}

func runFieldsReorder(cmd *cobra.Command, args []string) error {
	position, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("invalid position %q: %w", args[3], err)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.Store(args[0])
	if err != nil {
		return err
	}
	if err := store.ReorderField(actorContext(cmd), args[1], args[2], position-1); err != nil {
		return err
	}

	f, err := store.Field(args[2])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Field %s is now at position %d\n", f.Key, f.Order+1)
	return nil
}
