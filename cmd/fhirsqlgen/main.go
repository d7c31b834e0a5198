// Command fhirsqlgen compiles a SQL-on-FHIR v2 ViewDefinition JSON document
// into T-SQL: a thin go-flags CLI over a pure core package, with an optional
// live-database step gated behind its own flag.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/aehrc/sof-mssql/compiler"
	"github.com/aehrc/sof-mssql/storedb"
	"github.com/aehrc/sof-mssql/viewdef"
)

var version string

type cliOptions struct {
	ViewFile string `long:"view-file" description:"ViewDefinition JSON file to compile, rather than stdin" value-name:"json_file"`
	DryRun   bool   `long:"dry-run" description:"Print the compiled SQL and exit without connecting to a database"`
	TestID   string `long:"test-id" description:"Scope the compiled query to rows whose test_id column equals this value"`
	AsView   string `long:"as-view" description:"Wrap the compiled SQL in CREATE VIEW <name> AS ..." value-name:"view_name"`
	AsTable  string `long:"as-table" description:"Wrap the compiled SQL in SELECT * INTO <name> FROM (...) instead of generateQuery" value-name:"table_name"`

	Exec     bool   `long:"exec" description:"Execute the compiled query against a live MS SQL Server instance"`
	Host     string `short:"h" long:"host" description:"Host to connect to the MSSQL server" value-name:"host_name" default:"127.0.0.1"`
	Port     uint   `short:"p" long:"port" description:"Port used for the connection" value-name:"port_num" default:"1433"`
	User     string `short:"U" long:"user" description:"MSSQL user name" value-name:"user_name" default:"sa"`
	Password string `short:"P" long:"password" description:"MSSQL user password, overridden by $MSSQL_PWD" value-name:"password"`
	Prompt   bool   `long:"password-prompt" description:"Force MSSQL user password prompt"`
	Format   string `long:"format" description:"Output format for --exec results" choice:"table" choice:"csv" choice:"ndjson" default:"table"`

	Help    bool `long:"help" description:"Show this help"`
	Version bool `long:"version" description:"Show this version"`
}

func parseOptions(args []string) (cliOptions, string) {
	var opts cliOptions
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[options] db_name"
	args, err := parser.ParseArgs(args)
	if err != nil {
		logrus.Fatal(err)
	}

	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	var databaseName string
	if opts.Exec {
		if len(args) == 0 {
			fmt.Print("No database is specified!\n\n")
			parser.WriteHelp(os.Stdout)
			os.Exit(1)
		}
		databaseName = args[0]
	}
	return opts, databaseName
}

func main() {
	opts, databaseName := parseOptions(os.Args[1:])

	viewBytes, err := readViewDefinition(opts.ViewFile)
	if err != nil {
		logrus.WithError(err).Fatal("failed to read ViewDefinition")
	}

	vd, err := viewdef.Parse(viewBytes)
	if err != nil {
		logrus.WithError(err).Fatal("failed to parse ViewDefinition")
	}

	compilerOpts := compiler.Options{TestID: opts.TestID}
	result, err := compileView(vd, opts, compilerOpts)
	if err != nil {
		logrus.WithError(err).Fatal("failed to compile ViewDefinition")
	}

	if opts.DryRun || !opts.Exec {
		fmt.Println(result.SQL)
		return
	}

	runExec(result.SQL, opts, databaseName)
}

func compileView(vd *viewdef.ViewDefinition, opts cliOptions, compilerOpts compiler.Options) (*compiler.Result, error) {
	switch {
	case opts.AsView != "":
		return compiler.GenerateCreateView(vd, opts.AsView, compilerOpts)
	case opts.AsTable != "":
		return compiler.GenerateCreateTable(vd, opts.AsTable, compilerOpts)
	default:
		return compiler.Compile(vd, compilerOpts)
	}
}

func readViewDefinition(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func runExec(sqlText string, opts cliOptions, databaseName string) {
	password, ok := os.LookupEnv("MSSQL_PWD")
	if !ok {
		password = opts.Password
	}
	if opts.Prompt {
		fmt.Print("Enter Password: ")
		pass, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			logrus.WithError(err).Fatal("failed to read password")
		}
		password = string(pass)
	}

	executor, err := storedb.Connect(storedb.Config{
		Host:     opts.Host,
		Port:     int(opts.Port),
		User:     opts.User,
		Password: password,
		Database: databaseName,
	}, logrus.StandardLogger())
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect")
	}
	defer executor.Close()

	result, err := executor.Run(context.Background(), uuid.NewString(), sqlText)
	if err != nil {
		logrus.WithError(err).Fatal("failed to execute compiled query")
	}

	rendered, err := renderResult(result, opts.Format)
	if err != nil {
		logrus.WithError(err).Fatal("failed to render result")
	}
	fmt.Println(rendered)
}

func renderResult(result *storedb.Result, format string) (string, error) {
	switch format {
	case "csv":
		return storedb.RenderCSV(result)
	case "ndjson":
		return storedb.RenderNDJSON(result)
	default:
		return storedb.RenderTable(result), nil
	}
}
