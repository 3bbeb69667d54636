package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateSymbol  string
	simulateNobitex float64
	simulateWallex  float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次跨所价差并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateNobitex <= 0 || simulateWallex <= 0 {
			return errors.New("--nobitex 与 --wallex 必须大于 0")
		}

		nobitex := decimal.NewFromFloat(simulateNobitex)
		wallex := decimal.NewFromFloat(simulateWallex)
		return getApp().SimulateAlert(cmd.Context(), simulateSymbol, nobitex, wallex)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSymbol, "symbol", "BTCUSDT", "交易对符号")
	simulateCmd.Flags().Float64Var(&simulateNobitex, "nobitex", 0, "Nobitex 侧价格")
	simulateCmd.Flags().Float64Var(&simulateWallex, "wallex", 0, "Wallex 侧价格")
}
