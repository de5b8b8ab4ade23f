package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gen"
	"gorm.io/gorm"
)

// Regenerates the journal model from a migrated database. Only the tables
// the task journal reads are generated.
func main() {
	var dsn, out string
	flag.StringVar(&dsn, "dsn", os.Getenv("ROUNDSBOT_DB_DSN"), "postgres dsn (migrations from db/migrations applied)")
	flag.StringVar(&out, "out", "internal/adapter/repo/gorm/model", "output dir for generated models")
	flag.Parse()

	if dsn == "" {
		log.Fatal("missing --dsn or ROUNDSBOT_DB_DSN")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	g := gen.NewGenerator(gen.Config{
		OutPath:           out,
		ModelPkgPath:      "model",
		Mode:              gen.WithoutContext,
		FieldWithIndexTag: true,
	})
	g.UseDB(db)
	g.WithDataTypeMap(map[string]func(gorm.ColumnType) string{
		"jsonb": func(gorm.ColumnType) string { return "string" },
	})
	g.GenerateModel("task_records")
	g.Execute()

	fmt.Printf("generated task journal models at %s\n", out)
}
