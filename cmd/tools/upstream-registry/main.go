// cmd/tools/upstream-registry/main.go
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"meminator/internal/common/config"
	"meminator/pkg/registry"
)

const defaultPath = "configs/upstreams.json"

var stdout io.Writer = os.Stdout

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "add":
		err = runAdd(os.Args[2:])
	case "update":
		err = runUpdate(os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	default:
		help()
		return
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runAdd(args []string) error {
	cmd := flag.NewFlagSet("add", flag.ExitOnError)
	path := cmd.String("path", defaultPath, "Path to registry file")
	name := cmd.String("name", "", "Logical service name (e.g., image-source)")
	url := cmd.String("url", "", "Absolute URL of the service")
	method := cmd.String("method", http.MethodGet, "Allowed method (GET or POST)")
	timeout := cmd.Int("timeoutMs", 5000, "Per-call timeout in milliseconds")
	_ = cmd.Parse(args)

	if *name == "" || *url == "" {
		cmd.Usage()
		return fmt.Errorf("name and url are required for add")
	}

	file, err := registry.ReadFile(*path)
	if os.IsNotExist(err) {
		file, err = registry.NewFile(), nil
	}
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if file.Find(*name) >= 0 {
		return fmt.Errorf("upstream %s already exists", *name)
	}

	file.Upstreams = append(file.Upstreams, registry.Descriptor{
		Name:          *name,
		URL:           *url,
		Method:        strings.ToUpper(*method),
		TimeoutMillis: *timeout,
	})
	if err := file.Validate(); err != nil {
		return err
	}
	if err := file.Save(*path); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Added upstream: %s\n", *name)
	return nil
}

func runUpdate(args []string) error {
	cmd := flag.NewFlagSet("update", flag.ExitOnError)
	path := cmd.String("path", defaultPath, "Path to registry file")
	name := cmd.String("name", "", "Upstream to update")
	field := cmd.String("field", "", "Field to update (url, method, timeoutMs)")
	value := cmd.String("value", "", "New value for the field")
	_ = cmd.Parse(args)

	if *name == "" || *field == "" || *value == "" {
		cmd.Usage()
		return fmt.Errorf("name, field, and value are required for update")
	}

	file, err := registry.ReadFile(*path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	i := file.Find(*name)
	if i < 0 {
		return fmt.Errorf("upstream %s not found", *name)
	}

	switch *field {
	case "url":
		file.Upstreams[i].URL = *value
	case "method":
		file.Upstreams[i].Method = strings.ToUpper(*value)
	case "timeoutMs":
		ms, err := strconv.Atoi(*value)
		if err != nil {
			return fmt.Errorf("invalid timeoutMs value: %w", err)
		}
		file.Upstreams[i].TimeoutMillis = ms
	default:
		return fmt.Errorf("unknown field: %s", *field)
	}

	if err := file.Validate(); err != nil {
		return err
	}
	if err := file.Save(*path); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Updated upstream %s, field %s to %s\n", *name, *field, *value)
	return nil
}

func runValidate(args []string) error {
	cmd := flag.NewFlagSet("validate", flag.ExitOnError)
	path := cmd.String("path", defaultPath, "Path to registry file")
	_ = cmd.Parse(args)

	file, err := registry.ReadFile(*path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := file.Validate(); err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}
	reg, err := registry.New(file.Upstreams...)
	if err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}
	if err := reg.Require(config.RequiredUpstreams...); err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}
	fmt.Fprintf(stdout, "Registry validation passed. Found %d upstreams.\n", len(file.Upstreams))
	return nil
}

func runList(args []string) error {
	cmd := flag.NewFlagSet("list", flag.ExitOnError)
	path := cmd.String("path", defaultPath, "Path to registry file")
	_ = cmd.Parse(args)

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return err
	}
	for _, name := range reg.Names() {
		d, _ := reg.Lookup(name)
		fmt.Fprintf(stdout, "%-16s %-5s %-8s %s\n", d.Name, d.Method, d.Timeout, d.URL)
	}
	return nil
}

func help() {
	fmt.Fprint(stdout, `
Usage: upstream-registry <command> [flags]

Commands:
  add       Add an upstream service to the registry
  update    Update an existing upstream's field
  validate  Validate the registry file
  list      Print the registered upstreams
  help      Show this help message

Examples:
  upstream-registry add -name image-source -url http://image-picker:10116/imageUrl -method GET
  upstream-registry update -name render -field timeoutMs -value 45000
  upstream-registry validate -path configs/upstreams.json

Use 'upstream-registry <command> -h' for more information about a command.
`)
}
