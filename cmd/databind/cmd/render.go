package cmd

func init() {
	RegisterCommand(&Command{
		Name:  "render",
		Short: "Render a bound page once",
		Long: `Bind a page to its data and write the result.

Data sources come from --data glob patterns and from data_files in
databind.yaml. Each file becomes a source named after the file without
its extension. Supported formats: .yaml, .yml, .json, .hcl, and SQLite
databases (.db, .sqlite, .sqlite3), whose tables become lists of rows.

Flags:
  -d, --data GLOB    Data file pattern (repeatable, ** supported)
  -o, --out FILE     Output file (default: stdout)
  --preview          Render with preview handlers`,
		Usage: "databind render <page.html> [--data GLOB]... [--out FILE] [--preview]",
		Run:   runRender,
	})
}

func runRender(args []string) error {
	opts, err := parsePageArgs(args)
	if err != nil {
		return err
	}
	s, err := openSession(opts, nil)
	if err != nil {
		return err
	}
	defer s.close()
	return s.write(opts.out)
}
