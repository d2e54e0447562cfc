package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// mockGetParameterExisting returns a function that checks a set of existing
// parameter paths and returns ParameterNotFound for missing ones.
func mockGetParameterExisting(existing map[string]bool) func(context.Context, *ssm.GetParameterInput) (*ssm.GetParameterOutput, error) {
	return func(_ context.Context, input *ssm.GetParameterInput) (*ssm.GetParameterOutput, error) {
		path := aws.ToString(input.Name)
		if existing[path] {
			return &ssm.GetParameterOutput{
				Parameter: &ssmtypes.Parameter{
					Name:  aws.String(path),
					Value: aws.String("***"),
				},
			}, nil
		}
		return nil, &ssmtypes.ParameterNotFound{Message: aws.String("not found")}
	}
}

// newBootstrapTestRunner creates a BootstrapRunner with mock SSM and injected
// stdin content. The validator uses a nil HTTP client (no network calls).
func newBootstrapTestRunner(mock *mockSSMClient, stdin string) (*BootstrapRunner, *bytes.Buffer) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stderr := &bytes.Buffer{}

	ssmMgr := NewSSMManagerWithClient(mock, "dev", logger)
	validator := NewValidatorWithDeps(nil)

	return &BootstrapRunner{
		SSM:       ssmMgr,
		Validator: validator,
		Stdin:     strings.NewReader(stdin),
		Stderr:    stderr,
	}, stderr
}

// newTestRunnerWithSimpleValidation creates a runner where all prompted steps
// use always-valid validators, so we don't need real network connectivity.
// It also pre-fills stdin with test values for all prompted steps.
func newTestRunnerWithSimpleValidation(mock *mockSSMClient) (*BootstrapRunner, *bytes.Buffer) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stderr := &bytes.Buffer{}

	ssmMgr := NewSSMManagerWithClient(mock, "dev", logger)
	validator := NewValidatorWithDeps(nil)

	// Build inventory with overridden validators that always pass.
	alwaysValid := func(_ context.Context, _ string) ValidationResult {
		return ValidationResult{Valid: true, Message: "test-accepted"}
	}

	inventory := BuildInventory(validator)
	for i := range inventory {
		if inventory[i].ValidateFn != nil {
			inventory[i].ValidateFn = alwaysValid
		}
	}

	// Build stdin with test values for all prompted steps.
	var inputs []string
	for _, step := range inventory {
		if step.Source == SourcePrompt {
			if step.IsSecret {
				inputs = append(inputs, "test-secret-value-1234567890")
			} else {
				inputs = append(inputs, "test-public-value-1234567890")
			}
		}
	}

	runner := &BootstrapRunner{
		SSM:               ssmMgr,
		Validator:         validator,
		Stdin:             strings.NewReader(strings.Join(inputs, "\n") + "\n"),
		Stderr:            stderr,
		inventoryOverride: inventory,
	}

	return runner, stderr
}

// findInventoryStep returns the step with the given category key, failing the
// test if it is not present.
func findInventoryStep(t *testing.T, inventory []BootstrapStep, categoryKey string) BootstrapStep {
	t.Helper()
	for _, step := range inventory {
		if step.SSMCategoryKey == categoryKey {
			return step
		}
	}
	t.Fatalf("step %q not found in inventory", categoryKey)
	return BootstrapStep{}
}

// ---------------------------------------------------------------------------
// BuildInventory tests
// ---------------------------------------------------------------------------

func TestBuildInventory_ReturnsCorrectCount(t *testing.T) {
	v := NewValidatorWithDeps(nil)
	inventory := BuildInventory(v)

	// Base URL, API Key, Service Account, Signing Key (generated),
	// Catalog Tile, Catalog Mirrors (fixed)
	expectedCount := 6
	if len(inventory) != expectedCount {
		t.Errorf("inventory count = %d, want %d", len(inventory), expectedCount)
		for i, step := range inventory {
			t.Logf("  [%d] %s (%s)", i, step.HumanLabel, step.SSMCategoryKey)
		}
	}
}

func TestBuildInventory_SSMPaths(t *testing.T) {
	v := NewValidatorWithDeps(nil)
	inventory := BuildInventory(v)

	expectedPaths := map[string]bool{
		"platform/base_url":        true,
		"platform/api_key":         true,
		"platform/service_account": true,
		"platform/private_key":     true,
		"catalog/tile":             true,
		"catalog/mirrors":          true,
	}

	for _, step := range inventory {
		if !expectedPaths[step.SSMCategoryKey] {
			t.Errorf("unexpected SSM path in inventory: %s", step.SSMCategoryKey)
		}
		delete(expectedPaths, step.SSMCategoryKey)
	}

	for path := range expectedPaths {
		t.Errorf("missing expected SSM path: %s", path)
	}
}

func TestBuildInventory_ParameterTypes(t *testing.T) {
	v := NewValidatorWithDeps(nil)
	inventory := BuildInventory(v)

	expectedTypes := map[string]ParameterType{
		"platform/base_url":        ParamString,
		"platform/api_key":         ParamSecureString,
		"platform/service_account": ParamString,
		"platform/private_key":     ParamSecureString,
		"catalog/tile":             ParamString,
		"catalog/mirrors":          ParamString,
	}

	for _, step := range inventory {
		expected, ok := expectedTypes[step.SSMCategoryKey]
		if !ok {
			continue
		}
		if step.ParamType != expected {
			t.Errorf("step %q: ParamType = %v, want %v", step.SSMCategoryKey, step.ParamType, expected)
		}
	}
}

func TestBuildInventory_SourceTypes(t *testing.T) {
	v := NewValidatorWithDeps(nil)
	inventory := BuildInventory(v)

	expectedSources := map[string]InputSource{
		"platform/base_url":        SourcePrompt,
		"platform/api_key":         SourcePrompt,
		"platform/service_account": SourcePrompt,
		"platform/private_key":     SourceGenerated,
		"catalog/tile":             SourcePrompt,
		"catalog/mirrors":          SourceFixed,
	}

	for _, step := range inventory {
		expected, ok := expectedSources[step.SSMCategoryKey]
		if !ok {
			continue
		}
		if step.Source != expected {
			t.Errorf("step %q: Source = %v, want %v", step.SSMCategoryKey, step.Source, expected)
		}
	}
}

func TestBuildInventory_MirrorsHaveFixedValue(t *testing.T) {
	v := NewValidatorWithDeps(nil)
	inventory := BuildInventory(v)

	step := findInventoryStep(t, inventory, "catalog/mirrors")
	if step.FixedValue != "sentinel-s2-l2a,sentinel-cogs" {
		t.Errorf("Catalog Mirrors FixedValue = %q, want %q", step.FixedValue, "sentinel-s2-l2a,sentinel-cogs")
	}
}

func TestBuildInventory_GeneratedStepsHaveGenerators(t *testing.T) {
	v := NewValidatorWithDeps(nil)
	inventory := BuildInventory(v)

	for _, step := range inventory {
		if step.Source != SourceGenerated {
			continue
		}
		if step.GenerateFn == nil {
			t.Errorf("generated step %q has no GenerateFn", step.HumanLabel)
		}
		if step.Prompt != "" {
			t.Errorf("generated step %q should not have a prompt, got %q", step.HumanLabel, step.Prompt)
		}
	}
}

func TestBuildInventory_SecretFlagsCorrect(t *testing.T) {
	v := NewValidatorWithDeps(nil)
	inventory := BuildInventory(v)

	for _, step := range inventory {
		if step.Source == SourcePrompt && step.ParamType == ParamSecureString {
			if !step.IsSecret {
				t.Errorf("step %q is SecureString+Prompt but IsSecret=false", step.HumanLabel)
			}
		}
	}
}

func TestBuildInventory_OptionalFlags(t *testing.T) {
	v := NewValidatorWithDeps(nil)
	inventory := BuildInventory(v)

	// The pipeline needs either an API key or a service account, never both,
	// and the tile has a built-in default. Everything else is required.
	expectedOptional := map[string]bool{
		"platform/api_key":         true,
		"platform/service_account": true,
		"catalog/tile":             true,
	}

	for _, step := range inventory {
		if step.Optional != expectedOptional[step.SSMCategoryKey] {
			t.Errorf("step %q: Optional = %v, want %v", step.SSMCategoryKey, step.Optional, expectedOptional[step.SSMCategoryKey])
		}
	}
}

func TestBuildInventory_PhaseOrder(t *testing.T) {
	v := NewValidatorWithDeps(nil)
	inventory := BuildInventory(v)

	// Platform access comes first, then the generated signing key, then
	// archive defaults. Verify the phases appear in that order.
	var phases []string
	lastPhase := ""
	for _, step := range inventory {
		if step.Phase != lastPhase {
			phases = append(phases, step.Phase)
			lastPhase = step.Phase
		}
	}

	expectedPhases := []string{"Platform Access", "Internal Secrets", "Archive Defaults"}
	if len(phases) != len(expectedPhases) {
		t.Fatalf("phase order = %v, want %v", phases, expectedPhases)
	}
	for i, p := range phases {
		if p != expectedPhases[i] {
			t.Errorf("phase[%d] = %q, want %q", i, p, expectedPhases[i])
		}
	}
}

func TestBuildInventory_ServiceAccountPattern(t *testing.T) {
	v := NewValidatorWithDeps(nil)
	inventory := BuildInventory(v)

	step := findInventoryStep(t, inventory, "platform/service_account")
	if step.ValidateFn == nil {
		t.Fatal("service account step has no validator")
	}

	ctx := context.Background()

	valid := []string{
		"surveyor@fieldline.iam.example.com",
		"a@b.co",
		"pipeline-prod@geo.example.org",
	}
	for _, input := range valid {
		if result := step.ValidateFn(ctx, input); !result.Valid {
			t.Errorf("expected %q to validate, got: %s", input, result.Message)
		}
	}

	invalid := []string{
		"no-at-sign",
		"two@@signs.example.com",
		"spaces in@local.example.com",
		"missing-domain@nodot",
	}
	for _, input := range invalid {
		if result := step.ValidateFn(ctx, input); result.Valid {
			t.Errorf("expected %q to be rejected", input)
		}
	}
}

// ---------------------------------------------------------------------------
// processStep tests
// ---------------------------------------------------------------------------

func TestProcessStep_NewParameterWritten(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
	}

	step := BootstrapStep{
		HumanLabel:     "Test Key",
		SSMCategoryKey: "test/key",
		ParamType:      ParamSecureString,
		Source:         SourcePrompt,
		Prompt:         "Enter test key:",
		IsSecret:       true,
		ValidateFn: func(_ context.Context, _ string) ValidationResult {
			return ValidationResult{Valid: true, Message: "ok"}
		},
	}

	runner, _ := newBootstrapTestRunner(mock, "my-secret-value\n")

	result, err := runner.processStep(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "written" {
		t.Errorf("action = %q, want %q", result.Action, "written")
	}

	if len(mock.putCalls) != 1 {
		t.Fatalf("expected 1 put call, got %d", len(mock.putCalls))
	}

	call := mock.putCalls[0]
	if aws.ToString(call.Name) != "/dev/fieldline/test/key" {
		t.Errorf("put path = %q, want %q", aws.ToString(call.Name), "/dev/fieldline/test/key")
	}
	if aws.ToString(call.Value) != "my-secret-value" {
		t.Errorf("put value = %q, want %q", aws.ToString(call.Value), "my-secret-value")
	}
	if call.Type != ssmtypes.ParameterTypeSecureString {
		t.Errorf("put type = %v, want SecureString", call.Type)
	}
	if aws.ToBool(call.Overwrite) {
		t.Error("overwrite should be false for new parameter")
	}
}

func TestProcessStep_ExistingParameterSkipped(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{
			"/dev/fieldline/test/key": true,
		}),
	}

	step := BootstrapStep{
		HumanLabel:     "Test Key",
		SSMCategoryKey: "test/key",
		ParamType:      ParamSecureString,
		Source:         SourcePrompt,
	}

	// User chooses "skip".
	runner, _ := newBootstrapTestRunner(mock, "s\n")

	result, err := runner.processStep(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "skipped" {
		t.Errorf("action = %q, want %q", result.Action, "skipped")
	}

	if len(mock.putCalls) != 0 {
		t.Errorf("expected no put calls when skipping, got %d", len(mock.putCalls))
	}
}

func TestProcessStep_ExistingParameterOverwritten(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{
			"/dev/fieldline/test/key": true,
		}),
	}

	step := BootstrapStep{
		HumanLabel:     "Test Key",
		SSMCategoryKey: "test/key",
		ParamType:      ParamSecureString,
		Source:         SourcePrompt,
		Prompt:         "Enter value:",
		IsSecret:       true,
		ValidateFn: func(_ context.Context, _ string) ValidationResult {
			return ValidationResult{Valid: true, Message: "ok"}
		},
	}

	// User chooses "overwrite" then provides a new value.
	runner, _ := newBootstrapTestRunner(mock, "o\nnew-secret-value\n")

	result, err := runner.processStep(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "overwritten" {
		t.Errorf("action = %q, want %q", result.Action, "overwritten")
	}

	if len(mock.putCalls) != 1 {
		t.Fatalf("expected 1 put call, got %d", len(mock.putCalls))
	}

	call := mock.putCalls[0]
	if !aws.ToBool(call.Overwrite) {
		t.Error("overwrite should be true for existing parameter")
	}
	if aws.ToString(call.Value) != "new-secret-value" {
		t.Errorf("put value = %q, want %q", aws.ToString(call.Value), "new-secret-value")
	}
}

func TestProcessStep_GeneratedParameter(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
	}

	step := BootstrapStep{
		HumanLabel:     "Test Generated",
		SSMCategoryKey: "test/generated",
		ParamType:      ParamSecureString,
		Source:         SourceGenerated,
		GenerateFn: func() (string, string, error) {
			return "generated-value-123", "register this note", nil
		},
	}

	runner, stderr := newBootstrapTestRunner(mock, "")

	result, err := runner.processStep(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "generated" {
		t.Errorf("action = %q, want %q", result.Action, "generated")
	}

	if len(mock.putCalls) != 1 {
		t.Fatalf("expected 1 put call, got %d", len(mock.putCalls))
	}

	call := mock.putCalls[0]
	if aws.ToString(call.Name) != "/dev/fieldline/test/generated" {
		t.Errorf("put path = %q, want %q", aws.ToString(call.Name), "/dev/fieldline/test/generated")
	}
	if aws.ToString(call.Value) != "generated-value-123" {
		t.Errorf("put value = %q, want %q", aws.ToString(call.Value), "generated-value-123")
	}
	if call.Type != ssmtypes.ParameterTypeSecureString {
		t.Errorf("put type = %v, want SecureString", call.Type)
	}

	// The note is shown only after the value is stored.
	output := stderr.String()
	storedIdx := strings.Index(output, "Stored:")
	noteIdx := strings.Index(output, "register this note")
	if storedIdx < 0 {
		t.Fatal("output missing Stored confirmation")
	}
	if noteIdx < 0 {
		t.Fatal("output missing generator note")
	}
	if noteIdx < storedIdx {
		t.Error("generator note printed before the value was stored")
	}

	// The generated value itself must never be displayed.
	if strings.Contains(output, "generated-value-123") {
		t.Error("generated value was echoed to stderr")
	}
}

func TestProcessStep_GeneratedSigningKey(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
	}

	// Use the real inventory step so the whole generate-store-display path
	// is exercised with an actual key pair.
	v := NewValidatorWithDeps(nil)
	step := findInventoryStep(t, BuildInventory(v), "platform/private_key")

	runner, stderr := newBootstrapTestRunner(mock, "")

	result, err := runner.processStep(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "generated" {
		t.Errorf("action = %q, want %q", result.Action, "generated")
	}

	if len(mock.putCalls) != 1 {
		t.Fatalf("expected 1 put call, got %d", len(mock.putCalls))
	}

	storedValue := aws.ToString(mock.putCalls[0].Value)
	if !strings.Contains(storedValue, "BEGIN PRIVATE KEY") {
		t.Error("stored value is not a private key PEM")
	}

	output := stderr.String()
	if !strings.Contains(output, "BEGIN PUBLIC KEY") {
		t.Error("output missing the public key for registration")
	}
	if !strings.Contains(output, "Register this public key") {
		t.Error("output missing the registration instruction")
	}
	if strings.Contains(output, "BEGIN PRIVATE KEY") {
		t.Error("private key was echoed to stderr")
	}
}

func TestProcessStep_GeneratedWithoutGenerator(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
	}

	step := BootstrapStep{
		HumanLabel:     "Broken Step",
		SSMCategoryKey: "test/broken",
		ParamType:      ParamSecureString,
		Source:         SourceGenerated,
	}

	runner, _ := newBootstrapTestRunner(mock, "")

	_, err := runner.processStep(context.Background(), step)
	if err == nil {
		t.Fatal("expected error for generated step without GenerateFn")
	}
	if !strings.Contains(err.Error(), "no generator") {
		t.Errorf("error = %q, want to contain 'no generator'", err.Error())
	}
	if len(mock.putCalls) != 0 {
		t.Errorf("expected no put calls, got %d", len(mock.putCalls))
	}
}

func TestProcessStep_FixedParameter(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
	}

	step := BootstrapStep{
		HumanLabel:     "Catalog Mirrors",
		SSMCategoryKey: "catalog/mirrors",
		ParamType:      ParamString,
		Source:         SourceFixed,
		FixedValue:     "sentinel-s2-l2a,sentinel-cogs",
	}

	runner, _ := newBootstrapTestRunner(mock, "")

	result, err := runner.processStep(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "written" {
		t.Errorf("action = %q, want %q", result.Action, "written")
	}

	if len(mock.putCalls) != 1 {
		t.Fatalf("expected 1 put call, got %d", len(mock.putCalls))
	}

	call := mock.putCalls[0]
	if aws.ToString(call.Value) != "sentinel-s2-l2a,sentinel-cogs" {
		t.Errorf("put value = %q, want %q", aws.ToString(call.Value), "sentinel-s2-l2a,sentinel-cogs")
	}
	if call.Type != ssmtypes.ParameterTypeString {
		t.Errorf("put type = %v, want String", call.Type)
	}
}

func TestProcessStep_ValidationRetry(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
	}

	callCount := 0
	step := BootstrapStep{
		HumanLabel:     "Test Key",
		SSMCategoryKey: "test/key",
		ParamType:      ParamString,
		Source:         SourcePrompt,
		Prompt:         "Enter value:",
		IsSecret:       false,
		ValidateFn: func(_ context.Context, _ string) ValidationResult {
			callCount++
			if callCount < 3 {
				return ValidationResult{Valid: false, Message: "invalid"}
			}
			return ValidationResult{Valid: true, Message: "ok"}
		},
	}

	// First two inputs fail validation, third succeeds.
	runner, _ := newBootstrapTestRunner(mock, "bad1\nbad2\ngood\n")

	result, err := runner.processStep(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "written" {
		t.Errorf("action = %q, want %q", result.Action, "written")
	}

	if callCount != 3 {
		t.Errorf("validation called %d times, want 3", callCount)
	}

	if len(mock.putCalls) != 1 {
		t.Fatalf("expected 1 put call, got %d", len(mock.putCalls))
	}
	if aws.ToString(mock.putCalls[0].Value) != "good" {
		t.Errorf("put value = %q, want %q", aws.ToString(mock.putCalls[0].Value), "good")
	}
}

func TestProcessStep_MaxRetriesExceeded(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
	}

	step := BootstrapStep{
		HumanLabel:     "Test Key",
		SSMCategoryKey: "test/key",
		ParamType:      ParamString,
		Source:         SourcePrompt,
		Prompt:         "Enter value:",
		IsSecret:       false,
		ValidateFn: func(_ context.Context, _ string) ValidationResult {
			return ValidationResult{Valid: false, Message: "always invalid"}
		},
	}

	// Provide maxRetries worth of bad inputs.
	inputs := ""
	for i := 0; i < maxRetries; i++ {
		inputs += fmt.Sprintf("bad%d\n", i)
	}

	runner, _ := newBootstrapTestRunner(mock, inputs)

	_, err := runner.processStep(context.Background(), step)
	if err == nil {
		t.Fatal("expected error for exceeded retries")
	}
	if !strings.Contains(err.Error(), "maximum retries") {
		t.Errorf("error = %q, want to contain 'maximum retries'", err.Error())
	}
}

func TestProcessStep_EmptyInputRetryChoice(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
	}

	step := BootstrapStep{
		HumanLabel:     "Test Key",
		SSMCategoryKey: "test/key",
		ParamType:      ParamString,
		Source:         SourcePrompt,
		Prompt:         "Enter value:",
		IsSecret:       false,
		ValidateFn: func(_ context.Context, _ string) ValidationResult {
			return ValidationResult{Valid: true, Message: "ok"}
		},
	}

	// Empty input, choose retry, then provide a valid value.
	runner, _ := newBootstrapTestRunner(mock, "\nr\nvalid-input\n")

	_, err := runner.processStep(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.putCalls) != 1 {
		t.Fatalf("expected 1 put call, got %d", len(mock.putCalls))
	}
	if aws.ToString(mock.putCalls[0].Value) != "valid-input" {
		t.Errorf("put value = %q, want %q", aws.ToString(mock.putCalls[0].Value), "valid-input")
	}
}

func TestProcessStep_EmptyInputSkipChoice(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
	}

	step := BootstrapStep{
		HumanLabel:     "Test Key",
		SSMCategoryKey: "test/key",
		ParamType:      ParamString,
		Source:         SourcePrompt,
		Prompt:         "Enter value:",
		IsSecret:       false,
	}

	// Empty input, then choose skip.
	runner, _ := newBootstrapTestRunner(mock, "\ns\n")

	result, err := runner.processStep(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "skipped" {
		t.Errorf("action = %q, want %q", result.Action, "skipped")
	}
	if len(mock.putCalls) != 0 {
		t.Errorf("expected no put calls when skipping, got %d", len(mock.putCalls))
	}
}

func TestProcessStep_OptionalEmptyInputSkips(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
	}

	step := BootstrapStep{
		HumanLabel:     "Optional Key",
		SSMCategoryKey: "test/optional",
		ParamType:      ParamString,
		Source:         SourcePrompt,
		Prompt:         "Enter value or press Enter to skip:",
		Optional:       true,
	}

	// Optional steps skip on empty input without a confirmation prompt.
	runner, stderr := newBootstrapTestRunner(mock, "\n")

	result, err := runner.processStep(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "skipped" {
		t.Errorf("action = %q, want %q", result.Action, "skipped")
	}
	if len(mock.putCalls) != 0 {
		t.Errorf("expected no put calls, got %d", len(mock.putCalls))
	}
	if strings.Contains(stderr.String(), "[S]kip this parameter") {
		t.Error("optional step should not ask for skip confirmation")
	}
}

func TestProcessStep_SkipOptionalFlag(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
	}

	step := BootstrapStep{
		HumanLabel:     "Optional Key",
		SSMCategoryKey: "test/optional",
		ParamType:      ParamString,
		Source:         SourcePrompt,
		Prompt:         "Enter value:",
		Optional:       true,
	}

	runner, stderr := newBootstrapTestRunner(mock, "")
	runner.SkipOptional = true

	result, err := runner.processStep(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Action != "skipped" {
		t.Errorf("action = %q, want %q", result.Action, "skipped")
	}
	// The step is skipped before any SSM traffic.
	if len(mock.getCalls) != 0 {
		t.Errorf("expected no existence checks, got %d", len(mock.getCalls))
	}
	if !strings.Contains(stderr.String(), "--skip-optional") {
		t.Error("output should mention the --skip-optional flag")
	}
}

func TestProcessStep_SSMCheckError(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: func(_ context.Context, _ *ssm.GetParameterInput) (*ssm.GetParameterOutput, error) {
			return nil, fmt.Errorf("IAM permission denied")
		},
	}

	step := BootstrapStep{
		HumanLabel:     "Test Key",
		SSMCategoryKey: "test/key",
		ParamType:      ParamString,
		Source:         SourcePrompt,
	}

	runner, _ := newBootstrapTestRunner(mock, "")

	_, err := runner.processStep(context.Background(), step)
	if err == nil {
		t.Fatal("expected error when SSM check fails")
	}
	if !strings.Contains(err.Error(), "checking existence") {
		t.Errorf("error = %q, want to contain 'checking existence'", err.Error())
	}
}

func TestProcessStep_SSMWriteError(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
		putParameterFn: func(_ context.Context, _ *ssm.PutParameterInput) (*ssm.PutParameterOutput, error) {
			return nil, fmt.Errorf("KMS encryption failed")
		},
	}

	step := BootstrapStep{
		HumanLabel:     "Test Key",
		SSMCategoryKey: "test/key",
		ParamType:      ParamSecureString,
		Source:         SourcePrompt,
		Prompt:         "Enter value:",
		IsSecret:       true,
		ValidateFn: func(_ context.Context, _ string) ValidationResult {
			return ValidationResult{Valid: true, Message: "ok"}
		},
	}

	runner, _ := newBootstrapTestRunner(mock, "my-value\n")

	_, err := runner.processStep(context.Background(), step)
	if err == nil {
		t.Fatal("expected error when SSM write fails")
	}
	if !strings.Contains(err.Error(), "writing SSM parameter") {
		t.Errorf("error = %q, want to contain 'writing SSM parameter'", err.Error())
	}
}

// ---------------------------------------------------------------------------
// promptSkipOrOverwrite tests
// ---------------------------------------------------------------------------

func TestPromptSkipOrOverwrite_Skip(t *testing.T) {
	tests := []struct {
		input string
	}{
		{"s\n"},
		{"S\n"},
		{"skip\n"},
		{"Skip\n"},
		{"SKIP\n"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			runner := &BootstrapRunner{
				Stdin:  strings.NewReader(tt.input),
				Stderr: &bytes.Buffer{},
			}

			choice, err := runner.promptSkipOrOverwrite()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if choice != "skip" {
				t.Errorf("choice = %q, want %q", choice, "skip")
			}
		})
	}
}

func TestPromptSkipOrOverwrite_Overwrite(t *testing.T) {
	tests := []struct {
		input string
	}{
		{"o\n"},
		{"O\n"},
		{"overwrite\n"},
		{"Overwrite\n"},
		{"OVERWRITE\n"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			runner := &BootstrapRunner{
				Stdin:  strings.NewReader(tt.input),
				Stderr: &bytes.Buffer{},
			}

			choice, err := runner.promptSkipOrOverwrite()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if choice != "overwrite" {
				t.Errorf("choice = %q, want %q", choice, "overwrite")
			}
		})
	}
}

func TestPromptSkipOrOverwrite_InvalidThenValid(t *testing.T) {
	runner := &BootstrapRunner{
		Stdin:  strings.NewReader("x\ninvalid\ns\n"),
		Stderr: &bytes.Buffer{},
	}

	choice, err := runner.promptSkipOrOverwrite()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if choice != "skip" {
		t.Errorf("choice = %q, want %q", choice, "skip")
	}
}

func TestPromptSkipOrOverwrite_EOF(t *testing.T) {
	runner := &BootstrapRunner{
		Stdin:  strings.NewReader(""),
		Stderr: &bytes.Buffer{},
	}

	_, err := runner.promptSkipOrOverwrite()
	if err == nil {
		t.Fatal("expected error on EOF")
	}
}

// ---------------------------------------------------------------------------
// promptSkipOrRetry tests
// ---------------------------------------------------------------------------

func TestPromptSkipOrRetry_Choices(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"s\n", "skip"},
		{"skip\n", "skip"},
		{"r\n", "retry"},
		{"Retry\n", "retry"},
		{"x\nr\n", "retry"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			runner := &BootstrapRunner{
				Stdin:  strings.NewReader(tt.input),
				Stderr: &bytes.Buffer{},
			}

			choice, err := runner.promptSkipOrRetry()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if choice != tt.expected {
				t.Errorf("choice = %q, want %q", choice, tt.expected)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// readInput tests
// ---------------------------------------------------------------------------

func TestReadInput_ReadsLine(t *testing.T) {
	runner := &BootstrapRunner{
		Stdin:  strings.NewReader("hello world\n"),
		Stderr: &bytes.Buffer{},
	}

	input, err := runner.readInput("> ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if input != "hello world" {
		t.Errorf("input = %q, want %q", input, "hello world")
	}
}

func TestReadInput_EOF(t *testing.T) {
	runner := &BootstrapRunner{
		Stdin:  strings.NewReader(""),
		Stderr: &bytes.Buffer{},
	}

	_, err := runner.readInput("> ")
	if err == nil {
		t.Fatal("expected error on EOF")
	}
}

// ---------------------------------------------------------------------------
// readSecretInput tests (non-terminal path)
// ---------------------------------------------------------------------------

func TestReadSecretInput_NonTerminal(t *testing.T) {
	// When stdin is not a terminal (strings.Reader), it falls back to readInput.
	runner := &BootstrapRunner{
		Stdin:  strings.NewReader("secret-value\n"),
		Stderr: &bytes.Buffer{},
	}

	input, err := runner.readSecretInput("> ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if input != "secret-value" {
		t.Errorf("input = %q, want %q", input, "secret-value")
	}
}

// ---------------------------------------------------------------------------
// Full Run integration tests
// ---------------------------------------------------------------------------

func TestRun_AllNewParameters(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
	}

	runner, stderr := newTestRunnerWithSimpleValidation(mock)

	err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v\nstderr: %s", err, stderr.String())
	}

	// Verify all 6 parameters were written.
	if len(mock.putCalls) != 6 {
		t.Errorf("put calls = %d, want 6", len(mock.putCalls))
		for i, call := range mock.putCalls {
			t.Logf("  [%d] %s", i, aws.ToString(call.Name))
		}
	}

	// Verify specific paths were written.
	paths := make(map[string]bool)
	for _, call := range mock.putCalls {
		paths[aws.ToString(call.Name)] = true
	}

	expectedPaths := []string{
		"/dev/fieldline/platform/base_url",
		"/dev/fieldline/platform/api_key",
		"/dev/fieldline/platform/service_account",
		"/dev/fieldline/platform/private_key",
		"/dev/fieldline/catalog/tile",
		"/dev/fieldline/catalog/mirrors",
	}

	for _, path := range expectedPaths {
		if !paths[path] {
			t.Errorf("missing expected SSM write: %s", path)
		}
	}
}

func TestRun_AllParametersExist_AllSkipped(t *testing.T) {
	existing := map[string]bool{
		"/dev/fieldline/platform/base_url":        true,
		"/dev/fieldline/platform/api_key":         true,
		"/dev/fieldline/platform/service_account": true,
		"/dev/fieldline/platform/private_key":     true,
		"/dev/fieldline/catalog/tile":             true,
		"/dev/fieldline/catalog/mirrors":          true,
	}

	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(existing),
	}

	// All 6 steps will ask skip/overwrite -- provide "s" for all.
	skipInputs := strings.Repeat("s\n", 6)

	runner, stderr := newTestRunnerWithSimpleValidation(mock)
	runner.Stdin = strings.NewReader(skipInputs)

	err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v\nstderr: %s", err, stderr.String())
	}

	// No parameters should have been written.
	if len(mock.putCalls) != 0 {
		t.Errorf("expected no put calls when all skipped, got %d", len(mock.putCalls))
	}
}

func TestRun_SummaryContainsAllParameters(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
	}

	runner, stderr := newTestRunnerWithSimpleValidation(mock)

	err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stderr.String()
	if !strings.Contains(output, "Bootstrap Summary") {
		t.Error("output missing Bootstrap Summary header")
	}
	if !strings.Contains(output, "Total: 6 parameters") {
		t.Errorf("output missing total count, got:\n%s", output)
	}
}

func TestRun_PhaseHeadersPresent(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
	}

	runner, stderr := newTestRunnerWithSimpleValidation(mock)

	err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stderr.String()
	if !strings.Contains(output, "Platform Access") {
		t.Error("output missing 'Platform Access' phase header")
	}
	if !strings.Contains(output, "Internal Secrets") {
		t.Error("output missing 'Internal Secrets' phase header")
	}
	if !strings.Contains(output, "Archive Defaults") {
		t.Error("output missing 'Archive Defaults' phase header")
	}
}

func TestRun_SecretInputNotEchoed(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
	}

	runner, stderr := newTestRunnerWithSimpleValidation(mock)

	err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stderr.String()

	// The test secret value should NOT appear in stderr output.
	if strings.Contains(output, "test-secret-value-1234567890") {
		t.Error("secret input value was echoed to stderr")
	}
}

func TestRun_PrivateKeyNotEchoed(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
	}

	runner, stderr := newTestRunnerWithSimpleValidation(mock)

	err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stderr.String()

	// The public half must be displayed for registration; the private half
	// must never leave SSM.
	if !strings.Contains(output, "BEGIN PUBLIC KEY") {
		t.Error("output missing the public key for registration")
	}
	if strings.Contains(output, "BEGIN PRIVATE KEY") {
		t.Error("private key was echoed to stderr")
	}
}

func TestRun_NextStepInstructionShown(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
	}

	runner, stderr := newTestRunnerWithSimpleValidation(mock)

	err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stderr.String()
	if !strings.Contains(output, "platform-check") {
		t.Error("output missing next step platform-check instruction")
	}
}

func TestRun_MixedSkipAndWrite(t *testing.T) {
	// Some parameters exist, others don't.
	existing := map[string]bool{
		"/dev/fieldline/platform/base_url":    true,
		"/dev/fieldline/platform/private_key": true,
	}

	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(existing),
	}

	runner, stderr := newTestRunnerWithSimpleValidation(mock)

	// Build stdin: skip for existing, values for new.
	var inputLines []string
	inventory := runner.inventoryOverride
	for _, step := range inventory {
		path := runner.SSM.SSMPath(step.SSMCategoryKey)
		if existing[path] {
			inputLines = append(inputLines, "s") // skip
		} else if step.Source == SourcePrompt {
			if step.IsSecret {
				inputLines = append(inputLines, "test-secret-value-1234567890")
			} else {
				inputLines = append(inputLines, "test-public-value-1234567890")
			}
		}
		// Generated and Fixed don't need stdin input
	}
	runner.Stdin = strings.NewReader(strings.Join(inputLines, "\n") + "\n")

	err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v\nstderr: %s", err, stderr.String())
	}

	// 2 skipped (Base URL, Signing Key), 4 written:
	// API Key, Service Account, Catalog Tile (prompted), Catalog Mirrors (fixed).
	if len(mock.putCalls) != 4 {
		t.Errorf("put calls = %d, want 4", len(mock.putCalls))
		for i, call := range mock.putCalls {
			t.Logf("  [%d] %s", i, aws.ToString(call.Name))
		}
	}
}

func TestRun_SkipOptionalFlag(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
	}

	runner, stderr := newTestRunnerWithSimpleValidation(mock)
	runner.SkipOptional = true

	// Only the base URL is prompted; everything optional is auto-skipped.
	runner.Stdin = strings.NewReader("test-public-value-1234567890\n")

	err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v\nstderr: %s", err, stderr.String())
	}

	// Base URL (prompted), Signing Key (generated), Mirrors (fixed).
	if len(mock.putCalls) != 3 {
		t.Errorf("put calls = %d, want 3", len(mock.putCalls))
		for i, call := range mock.putCalls {
			t.Logf("  [%d] %s", i, aws.ToString(call.Name))
		}
	}

	output := stderr.String()
	if !strings.Contains(output, "Skipped (--skip-optional)") {
		t.Error("output missing the --skip-optional skip notice")
	}
	if !strings.Contains(output, "Skipped: 3") {
		t.Errorf("summary should count 3 skipped steps, got:\n%s", output)
	}
}

// ---------------------------------------------------------------------------
// Constant tests
// ---------------------------------------------------------------------------

func TestMaxRetries(t *testing.T) {
	if maxRetries < 3 {
		t.Errorf("maxRetries = %d, should be at least 3 to give the operator a fair chance", maxRetries)
	}
	if maxRetries > 10 {
		t.Errorf("maxRetries = %d, should not exceed 10 to avoid infinite loops", maxRetries)
	}
}
