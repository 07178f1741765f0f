package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/urfave/cli/v2"

	"godigital/internal/pkg/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Aviso: arquivo .env não encontrado. Usando apenas o ambiente do sistema.")
	}

	app := &cli.App{
		Name:  "migrate",
		Usage: "aplica as migrações goose do serviço de produtos digitais",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Value:   "./sql",
				Usage:   "diretório com os arquivos de migração",
				EnvVars: []string{"MIGRATIONS_DIR"},
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "DSN do PostgreSQL",
				EnvVars:  []string{"DATABASE_URL"},
				Required: true,
			},
		},
		Commands: []*cli.Command{
			gooseCommand("up", "aplica todas as migrações pendentes"),
			gooseCommand("down", "reverte a última migração"),
			gooseCommand("status", "mostra o estado das migrações"),
			gooseCommand("version", "mostra a versão atual do schema"),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("goose: %v", err)
	}
}

// gooseCommand expõe um comando do goose, repassando os argumentos extras.
func gooseCommand(name, usage string) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(c *cli.Context) error {
			db, err := database.NewPostgresDB(c.Context, c.String("database-url"), database.DefaultPoolConfig)
			if err != nil {
				return err
			}
			defer closeDB(db)

			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}
			if err := goose.RunContext(c.Context, name, db, c.String("dir"), c.Args().Slice()...); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			fmt.Printf("goose %s success\n", name)
			return nil
		},
	}
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Printf("goose: falha ao fechar o DB: %v", err)
	}
}
