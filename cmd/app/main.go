package main

import (
	"go.uber.org/fx"

	"github.com/alex-away/tg-ytdl-gofile/internal/app"
)

func main() {
	fx.New(app.CreateApp()).Run()
}
