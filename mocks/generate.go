package mocks

//go:generate mockgen -destination=./mock_risk.go -package=mocks github.com/rxtech-lab/argo-backtest/internal/risk Manager,HaltPolicy
//go:generate mockgen -destination=./mock_strategy.go -package=mocks github.com/rxtech-lab/argo-backtest/internal/strategy Strategy,OrderStrategy
//go:generate mockgen -destination=./mock_observer.go -package=mocks github.com/rxtech-lab/argo-backtest/internal/log Observer
//go:generate mockgen -destination=./mock_backtester.go -package=mocks github.com/rxtech-lab/argo-backtest/internal/backtest/engine Backtester
//go:generate mockgen -destination=./mock_datasource.go -package=mocks github.com/rxtech-lab/argo-backtest/internal/datasource DataSource
