package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/spf13/cobra"

	"github.com/VanDung-dev/DeltaKernel-Engine/data"
	"github.com/VanDung-dev/DeltaKernel-Engine/exchange"
	"github.com/VanDung-dev/DeltaKernel-Engine/kernel"
	"github.com/VanDung-dev/DeltaKernel-Engine/writer"
)

var (
	createTable bool
	engineInfo  string
	backend     string
)

var rootCmd = &cobra.Command{
	Use:   "write-table <table-path>",
	Short: "Append a sample batch to a table",
	Long: `write-table commits one record batch to the table at the given path.

The batch holds a single int64 column named "number" with the values
10, 11 and 12. With --create the table is initialized first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(args[0])
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().BoolVar(&createTable, "create", false, "create the table before writing")
	rootCmd.Flags().StringVar(&engineInfo, "engine-info", "default engine", "engineInfo value recorded in commit info")
	rootCmd.Flags().StringVar(&backend, "backend", "", "storage backend (local or memory)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var numberSchema = arrow.NewSchema([]arrow.Field{
	{Name: "number", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
}, nil)

func run(tablePath string) error {
	builderRes := kernel.NewEngineBuilder(tablePath)
	if builderRes.IsErr() {
		return takeError(builderRes.UnwrapErr())
	}
	builder := builderRes.Unwrap()
	if backend != "" {
		builder.SetOption(kernel.OptionStorageBackend, backend)
	}

	engineRes := builder.Build()
	if engineRes.IsErr() {
		return takeError(engineRes.UnwrapErr())
	}
	engine := engineRes.Unwrap()
	defer engine.Release()

	if createTable {
		if res := kernel.CreateTable(engine, numberSchema, ""); res.IsErr() {
			return takeError(res.UnwrapErr())
		}
		fmt.Println("created table at", engine.Root())
	}

	txnRes := kernel.BeginTransaction(tablePath, engine)
	if txnRes.IsErr() {
		return takeError(txnRes.UnwrapErr())
	}
	txn := txnRes.Unwrap()

	conv := data.NewConverter()

	infoRec, infoErr := conv.CommitInfoBatch(map[string]string{"engineInfo": engineInfo})
	info, err := engineData(engine, infoRec, infoErr)
	if err != nil {
		txn.Release()
		return err
	}
	if res := txn.AttachCommitInfo(info); res.IsErr() {
		info.Release()
		txn.Release()
		return takeError(res.UnwrapErr())
	}

	ctxRes := txn.WriteContext()
	if ctxRes.IsErr() {
		txn.Release()
		return takeError(ctxRes.UnwrapErr())
	}

	record := sampleBatch()
	meta, err := writer.NewParquetWriter().WriteBatch(ctxRes.Unwrap().TargetDir(), record)
	record.Release()
	if err != nil {
		txn.Release()
		return fmt.Errorf("failed to write data file: %w", err)
	}
	fmt.Printf("wrote %s (%d bytes)\n", meta.Path, meta.Size)

	addRec, addErr := conv.WriteMetadataBatch(meta)
	addMeta, err := engineData(engine, addRec, addErr)
	if err != nil {
		txn.Release()
		return err
	}
	if res := txn.AttachAddFile(addMeta); res.IsErr() {
		addMeta.Release()
		txn.Release()
		return takeError(res.UnwrapErr())
	}

	res := txn.Commit(engine)
	if res.IsErr() {
		return takeError(res.UnwrapErr())
	}
	fmt.Printf("committed version %d\n", res.Unwrap())
	return nil
}

func sampleBatch() arrow.Record {
	builder := array.NewRecordBuilder(memory.DefaultAllocator, numberSchema)
	defer builder.Release()
	builder.Field(0).(*array.Int64Builder).AppendValues([]int64{10, 11, 12}, nil)
	return builder.NewRecord()
}

// engineData moves a freshly built batch into an EngineData handle.
func engineData(engine *kernel.Engine, record arrow.Record, err error) (*kernel.EngineData, error) {
	if err != nil {
		return nil, err
	}
	arr, sch, err := exchange.ExportRecord(record)
	if err != nil {
		record.Release()
		return nil, err
	}
	record.Release()

	res := engine.GetEngineData(arr, sch)
	if res.IsErr() {
		return nil, takeError(res.UnwrapErr())
	}
	return res.Unwrap(), nil
}

func takeError(e *kernel.Error) error {
	msg := e.Error()
	_ = e.Free()
	return errors.New(msg)
}
