package database

// The sqlite schema snapshot in schema.sql is generated from the
// migrations so reviewers can read the final table layout in one place:
//   go generate ./internal/database

//go:generate sh -c "cd ../.. && go run internal/database/tools/generate_schema.go"
