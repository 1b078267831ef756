package kernel

import (
	"testing"

	"github.com/VanDung-dev/DeltaKernel-Engine/data"
	"github.com/VanDung-dev/DeltaKernel-Engine/exchange"
)

func TestEngineBuilderEmptyPath(t *testing.T) {
	for _, path := range []string{"", "   ", "file://"} {
		res := NewEngineBuilder(path)
		if !res.IsErr() {
			t.Errorf("NewEngineBuilder(%q) should fail", path)
			continue
		}
		e := res.UnwrapErr()
		if e.Code() != CodeInvalidArgument {
			t.Errorf("NewEngineBuilder(%q): expected CodeInvalidArgument, got %v", path, e.Code())
		}
		_ = e.Free()
	}
}

func TestEngineBuilderConsumedByBuild(t *testing.T) {
	res := NewEngineBuilder(testTablePath)
	if res.IsErr() {
		t.Fatalf("NewEngineBuilder failed: %v", res.UnwrapErr())
	}
	builder := res.Unwrap()
	builder.SetOption(OptionStorageBackend, "memory")

	built := builder.Build()
	if built.IsErr() {
		t.Fatalf("Build failed: %v", built.UnwrapErr())
	}
	defer built.Unwrap().Release()

	again := builder.Build()
	if !again.IsErr() || again.UnwrapErr().Code() != CodeInvalidHandle {
		t.Error("Second Build should fail with invalid handle")
	}
}

func TestEngineBuilderOptions(t *testing.T) {
	res := NewEngineBuilder(testTablePath)
	if res.IsErr() {
		t.Fatalf("NewEngineBuilder failed: %v", res.UnwrapErr())
	}
	builder := res.Unwrap()
	builder.SetOption(OptionStorageBackend, "memory")
	builder.SetOption("aws.region", "eu-west-1")

	built := builder.Build()
	if built.IsErr() {
		t.Fatalf("Build failed: %v", built.UnwrapErr())
	}
	engine := built.Unwrap()
	defer engine.Release()

	if v, ok := engine.Option("aws.region"); !ok || v != "eu-west-1" {
		t.Errorf("Expected option to survive build, got %q, %v", v, ok)
	}
}

func TestEngineBuilderUnknownBackend(t *testing.T) {
	res := NewEngineBuilder("/tmp/some-table")
	if res.IsErr() {
		t.Fatalf("NewEngineBuilder failed: %v", res.UnwrapErr())
	}
	builder := res.Unwrap()
	builder.SetOption(OptionStorageBackend, "tape")

	built := builder.Build()
	if !built.IsErr() || built.UnwrapErr().Code() != CodeInvalidArgument {
		t.Error("Unknown backend should fail with invalid argument")
	}
}

func TestFilePrefixScrubbed(t *testing.T) {
	res := NewEngineBuilder("file://" + t.TempDir() + "/")
	if res.IsErr() {
		t.Fatalf("NewEngineBuilder failed: %v", res.UnwrapErr())
	}
	builder := res.Unwrap()

	built := builder.Build()
	if built.IsErr() {
		t.Fatalf("Build failed: %v", built.UnwrapErr())
	}
	engine := built.Unwrap()
	defer engine.Release()

	root := engine.Root()
	if len(root) == 0 || root[0] != '/' {
		t.Errorf("Expected scrubbed absolute root, got %q", root)
	}
}

func TestEngineRefCounting(t *testing.T) {
	res := GetDefaultEngine(testTablePath)
	if res.IsErr() {
		t.Fatalf("GetDefaultEngine failed: %v", res.UnwrapErr())
	}
	engine := res.Unwrap()

	engine.Retain()
	if err := engine.Release(); err != nil {
		t.Fatalf("Release of retained reference failed: %v", err)
	}
	if err := engine.Release(); err != nil {
		t.Fatalf("Release of original reference failed: %v", err)
	}
	if err := engine.Release(); err != ErrAlreadyReleased {
		t.Errorf("Release past zero: expected ErrAlreadyReleased, got %v", err)
	}
}

func TestReleasedEngineRejected(t *testing.T) {
	res := GetDefaultEngine(testTablePath)
	if res.IsErr() {
		t.Fatalf("GetDefaultEngine failed: %v", res.UnwrapErr())
	}
	engine := res.Unwrap()
	if err := engine.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	txnRes := BeginTransaction(testTablePath, engine)
	if !txnRes.IsErr() || txnRes.UnwrapErr().Code() != CodeInvalidHandle {
		t.Error("BeginTransaction on released engine should fail with invalid handle")
	}
}

func TestGetEngineDataConsumesExchange(t *testing.T) {
	res := GetDefaultEngine(testTablePath)
	if res.IsErr() {
		t.Fatalf("GetDefaultEngine failed: %v", res.UnwrapErr())
	}
	engine := res.Unwrap()
	defer engine.Release()

	conv := data.NewConverter()
	record, err := conv.CommitInfoBatch(map[string]string{"engineInfo": "x"})
	if err != nil {
		t.Fatalf("CommitInfoBatch failed: %v", err)
	}
	arr, sch, err := exchange.ExportRecord(record)
	if err != nil {
		t.Fatalf("ExportRecord failed: %v", err)
	}
	record.Release()

	dataRes := engine.GetEngineData(arr, sch)
	if dataRes.IsErr() {
		t.Fatalf("GetEngineData failed: %v", dataRes.UnwrapErr())
	}
	engineData := dataRes.Unwrap()

	if engineData.Len() != 1 {
		t.Errorf("Expected 1 row, got %d", engineData.Len())
	}

	// The exchange structures were released by the import.
	if err := arr.Release(); err != exchange.ErrAlreadyReleased {
		t.Errorf("Array should have been released by import, got %v", err)
	}
	if err := sch.Release(); err != exchange.ErrAlreadyReleased {
		t.Errorf("Schema should have been released by import, got %v", err)
	}

	if err := engineData.Release(); err != nil {
		t.Errorf("EngineData release failed: %v", err)
	}
	if err := engineData.Release(); err != ErrAlreadyReleased {
		t.Errorf("Second release: expected ErrAlreadyReleased, got %v", err)
	}
}

func TestSchemaString(t *testing.T) {
	s, err := SchemaString(testSchema())
	if err != nil {
		t.Fatalf("SchemaString failed: %v", err)
	}
	want := `{"type":"struct","fields":[{"name":"number","type":"long","nullable":true,"metadata":{}}]}`
	if s != want {
		t.Errorf("SchemaString = %s, want %s", s, want)
	}
}

func TestCreateTableTwice(t *testing.T) {
	res := GetDefaultEngine(testTablePath)
	if res.IsErr() {
		t.Fatalf("GetDefaultEngine failed: %v", res.UnwrapErr())
	}
	engine := res.Unwrap()
	defer engine.Release()

	if created := CreateTable(engine, testSchema(), "id-1"); created.IsErr() {
		t.Fatalf("CreateTable failed: %v", created.UnwrapErr())
	}

	again := CreateTable(engine, testSchema(), "id-2")
	if !again.IsErr() || again.UnwrapErr().Code() != CodeStorage {
		t.Error("Second CreateTable should fail with storage error")
	}
}
