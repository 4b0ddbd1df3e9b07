package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron"

	"github.com/andresbrocco/finance-etl/pkg/config"
	"github.com/andresbrocco/finance-etl/pkg/pipeline"
)

const configEnvVar = "FINANCE_ETL_CONFIG"

type Runner interface {
	Run() error
	Close() error
}

var runner Runner

func main() {
	singleRun := flag.Bool("single-run", false, "run pipeline once (disable cron)")
	configFile := flag.String("config", "./config.yml", "configuration file")
	secretsFile := flag.String("secrets", "./secrets.json", "secrets file")
	csvFile := flag.String("file", "", "transactions csv file (overrides config)")
	dryRun := flag.Bool("dry-run", false, "run extract and transform only, skip the load (etl task)")
	help := flag.Bool("help", false, "show command help")

	flag.Parse()

	if *help {
		fmt.Println("personal finance warehouse loader")
		fmt.Println("finance-etl [options] task")
		fmt.Println("tasks: etl, provision, report, validate")
		flag.PrintDefaults()
		return
	}

	err := config.ReadConfig(configEnvVar, *configFile, *secretsFile)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if flag.NArg() == 0 {
		fmt.Println("No task passed in")
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "etl":
		runner, err = pipeline.NewETLRunner(*csvFile, *dryRun)
	case "provision":
		runner, err = pipeline.NewProvisionRunner()
	case "report":
		runner, err = pipeline.NewReportRunner(false)
	case "validate":
		runner, err = pipeline.NewReportRunner(true)
	default:
		fmt.Printf("Unknown task %s\n", flag.Arg(0))
		os.Exit(1)
	}

	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	defer runner.Close()

	run()

	if *singleRun || config.CurrentWarehouseConfig().UpdateFrequency == "" {
		return
	}

	c := cron.New()
	c.AddFunc(config.CurrentWarehouseConfig().UpdateFrequency, run)

	c.Start()

	select {}
}

func run() {
	fmt.Println(time.Now().Format(time.RFC850))
	err := runner.Run()
	if err != nil {
		fmt.Println(err)
	}
}
