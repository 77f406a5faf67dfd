package planeval

import "os"

// ShowHelp prints usage information for the plan-eval tool.
func ShowHelp() {
	os.Stdout.WriteString(`Nutriplan Plan Evaluator
========================

Scores candidate meal plans from a YAML file and prints them ranked.

Usage:
  go run ./cmd/plan-eval -input plans.yaml [options]

Options:
  -input string
        YAML file with a profile or targets, max_budget and plans (required)
  -url string
        Base URL of a running server; empty scores in process
  -user string
        User id remote plans are stored under
  -top int
        Number of ranked plans to print, 0 for all (default 0)
  -workers int
        Concurrent submissions in remote mode (default 4)
  -timeout duration
        HTTP request timeout (default 10s)
  -verbose
        Log every scored plan
  -help
        Show this help message

Input:
  profile:
    age: 25
    gender: male
    height_cm: 175
    weight_kg: 70
    activity_level: moderate
    goal: maintain
  max_budget: 50
  plans:
    - name: balanced
      meals:
        - {meal_type: breakfast, calories: 600, protein_g: 40, carbs_g: 70, fat_g: 20, price: 10}
        - {meal_type: dinner, calories: 1000, protein_g: 80, carbs_g: 85, fat_g: 32, price: 20}

Examples:
  # Score locally
  go run ./cmd/plan-eval -input plans.yaml

  # Submit to a server and keep the plans in its history
  go run ./cmd/plan-eval -input plans.yaml -url http://localhost:9080 -user alice
`)
}
