// ctest runs the compiler over a corpus of .c files and compares the
// emitted IR against golden .ll files stored next to the sources.
//
// A source file whose first comment line starts with "// expect-error"
// is a negative test: the compiler must exit non-zero, print exactly one
// diagnostic on stderr, and write no output file.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

type FileTestResult struct {
	File    string    `json:"file"`
	Status  string    `json:"status"` // PASS, FAIL, SKIP, ERROR, UPDATED
	Message string    `json:"message,omitempty"`
	Diff    string    `json:"diff,omitempty"`
	Compile Execution `json:"compile"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	compiler   = flag.String("compiler", "./ccc", "Path to the compiler to test.")
	extraArgs  = flag.String("compiler-args", "", "Extra arguments for the compiler (space-separated).")
	testFiles  = flag.String("test-files", "tests/*.c", "Glob pattern(s) for files to test (space-separated).")
	skipFiles  = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout    = flag.Duration("timeout", 5*time.Second, "Timeout for each compiler invocation.")
	jobs       = flag.Int("j", 4, "Number of parallel test jobs.")
	update     = flag.Bool("update", false, "Regenerate golden .ll files from the current compiler output.")
	verbose    = flag.Bool("v", false, "Enable verbose logging.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	tempDir, err := os.MkdirTemp("", "ctest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to create temp directory: %v\n", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)
	setupInterruptHandler(tempDir)

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		if abs, err := filepath.Abs(f); err == nil {
			skipList[abs] = true
		}
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- testFile(file, tempDir)
			}
		}()
	}

	// Feed the tasks channel, skipping files with identical content.
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		fileHash, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if originalFile, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[fileHash] = file
		tasks <- file
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].File < allResults[j].File
	})

	printSummary(allResults)
	resultsMap := writeJSONReport(allResults)

	if hasFailures(resultsMap) {
		os.Exit(1)
	}
}

// setupInterruptHandler cleans up on CTRL+C.
func setupInterruptHandler(tempDir string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		os.RemoveAll(tempDir)
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled. Cleaning up...\n", cYellow, cNone)
		os.Exit(1)
	}()
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

func goldenPath(sourceFile string) string {
	return strings.TrimSuffix(sourceFile, filepath.Ext(sourceFile)) + ".ll"
}

// expectsError reports whether the source is a negative test.
func expectsError(sourceFile string) bool {
	content, err := os.ReadFile(sourceFile)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		return strings.HasPrefix(trimmed, "// expect-error")
	}
	return false
}

func testFile(file, tempDir string) *FileTestResult {
	fileHash, err := hashFile(file)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: "Failed to hash source file"}
	}
	outPath := filepath.Join(tempDir, fileHash+".ll")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	args := []string{"-o", outPath}
	args = append(args, strings.Fields(*extraArgs)...)
	args = append(args, file)
	compile := executeCommand(ctx, *compiler, args...)

	if *verbose {
		log.Printf("[%s] %s %s (exit %d)", file, *compiler, strings.Join(args, " "), compile.ExitCode)
	}

	if expectsError(file) {
		return checkNegativeTest(file, outPath, compile)
	}

	if compile.TimedOut {
		return &FileTestResult{File: file, Status: "ERROR", Message: "Compiler timed out", Compile: compile}
	}
	if compile.ExitCode != 0 {
		return &FileTestResult{
			File:    file,
			Status:  "FAIL",
			Message: "Compiler failed on a source that should compile",
			Diff:    "Compiler STDERR:\n" + compile.Stderr,
			Compile: compile,
		}
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		return &FileTestResult{File: file, Status: "FAIL", Message: "Compiler exited 0 but wrote no output file", Compile: compile}
	}

	golden := goldenPath(file)
	if *update {
		if err := os.WriteFile(golden, got, 0644); err != nil {
			return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to write golden file %s: %v", golden, err)}
		}
		return &FileTestResult{File: file, Status: "UPDATED", Message: "Golden file regenerated", Compile: compile}
	}

	want, err := os.ReadFile(golden)
	if err != nil {
		return &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("No golden file %s (run with -update to create it)", golden), Compile: compile}
	}

	if diff := cmp.Diff(string(want), string(got)); diff != "" {
		return &FileTestResult{
			File:    file,
			Status:  "FAIL",
			Message: "Emitted IR differs from golden file",
			Diff:    diff,
			Compile: compile,
		}
	}
	return &FileTestResult{File: file, Status: "PASS", Message: "IR matches golden file", Compile: compile}
}

func checkNegativeTest(file, outPath string, compile Execution) *FileTestResult {
	if compile.ExitCode == 0 {
		return &FileTestResult{File: file, Status: "FAIL", Message: "Compiler succeeded on a source marked expect-error", Compile: compile}
	}
	if _, err := os.Stat(outPath); err == nil {
		return &FileTestResult{File: file, Status: "FAIL", Message: "Compiler failed but still wrote an output file", Compile: compile}
	}
	diagnostics := 0
	for _, line := range strings.Split(strings.TrimRight(compile.Stderr, "\n"), "\n") {
		if strings.Contains(line, "error") {
			diagnostics++
		}
	}
	if diagnostics != 1 {
		return &FileTestResult{
			File:    file,
			Status:  "FAIL",
			Message: fmt.Sprintf("Expected exactly one diagnostic, saw %d", diagnostics),
			Diff:    "Compiler STDERR:\n" + compile.Stderr,
			Compile: compile,
		}
	}
	return &FileTestResult{File: file, Status: "PASS", Message: "Rejected with one diagnostic as expected", Compile: compile}
}

// executeCommand runs a command with a timeout and captures its output.
func executeCommand(ctx context.Context, command string, args ...string) Execution {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(startTime)

	execResult := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if ctx.Err() == context.DeadlineExceeded {
		execResult.TimedOut = true
		execResult.ExitCode = -1
	} else if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			execResult.ExitCode = exitErr.ExitCode()
		} else {
			execResult.ExitCode = -2
			execResult.Stderr += "\nExecution error: " + err.Error()
		}
	}
	return execResult
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored, updated int

	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)

		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		case "UPDATED":
			updated++
			fmt.Printf("  [%sUPDATED%s] %s\n", cCyan, cNone, result.Message)
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Updated, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, updated, len(results))
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		lineWithIndent := "    " + line
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmedLine, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString(lineWithIndent)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}
	if err := os.WriteFile(*outputJSON, jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, *outputJSON, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", *outputJSON)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if !seen[absFile] {
				if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
					allFiles = append(allFiles, absFile)
					seen[absFile] = true
				}
			}
		}
	}
	return allFiles, nil
}
