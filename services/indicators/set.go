package indicators

import (
	"fmt"

	"github.com/Kyzereye/KyzerEyeStockLabs/services/config"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/marketdata"
)

// SeriesSet holds named indicator series aligned with the bar slice they
// were computed from. Keys follow the NAME_PERIOD convention: "SMA_20",
// "RSI_14", "BB_Upper", "MACD_Signal".
type SeriesSet map[string][]float64

// Get returns the named series or an error naming the missing key.
func (s SeriesSet) Get(name string) ([]float64, error) {
	v, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("indicator series %q not computed", name)
	}
	return v, nil
}

// ComputeAll evaluates every enabled indicator from the configuration over
// the bar series.
func ComputeAll(bars []marketdata.Bar, cfg config.IndicatorsConfig) SeriesSet {
	closes := marketdata.Closes(bars)
	volumes := marketdata.Volumes(bars)
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
	}

	set := SeriesSet{}
	if cfg.SMA.Enabled {
		for _, p := range cfg.SMA.Periods {
			set[fmt.Sprintf("SMA_%d", p)] = SMA(closes, p)
		}
	}
	if cfg.EMA.Enabled {
		for _, p := range cfg.EMA.Periods {
			set[fmt.Sprintf("EMA_%d", p)] = EMA(closes, p)
		}
	}
	if cfg.RSI.Enabled {
		for _, p := range cfg.RSI.Periods {
			set[fmt.Sprintf("RSI_%d", p)] = RSI(closes, p)
		}
	}
	if cfg.ATR.Enabled {
		for _, p := range cfg.ATR.Periods {
			set[fmt.Sprintf("ATR_%d", p)] = ATR(highs, lows, closes, p)
		}
	}
	if cfg.MACD.Enabled {
		m := MACD(closes, cfg.MACD.FastPeriod, cfg.MACD.SlowPeriod, cfg.MACD.SignalPeriod)
		set["MACD"] = m.MACD
		set["MACD_Signal"] = m.Signal
		set["MACD_Histogram"] = m.Histogram
	}
	if cfg.Bollinger.Enabled {
		b := Bollinger(closes, cfg.Bollinger.Period, cfg.Bollinger.StdDev)
		set["BB_Upper"] = b.Upper
		set["BB_Middle"] = b.Middle
		set["BB_Lower"] = b.Lower
	}
	if cfg.Stochastic.Enabled {
		st := Stochastic(highs, lows, closes, cfg.Stochastic.KPeriod, cfg.Stochastic.DPeriod, cfg.Stochastic.SmoothK)
		set["Stoch_K"] = st.K
		set["Stoch_D"] = st.D
	}
	if cfg.WilliamsR.Enabled {
		set[fmt.Sprintf("Williams_R_%d", cfg.WilliamsR.Period)] = WilliamsR(highs, lows, closes, cfg.WilliamsR.Period)
	}
	if cfg.CCI.Enabled {
		set[fmt.Sprintf("CCI_%d", cfg.CCI.Period)] = CCI(highs, lows, closes, cfg.CCI.Period)
	}
	if cfg.MFI.Enabled {
		set[fmt.Sprintf("MFI_%d", cfg.MFI.Period)] = MFI(highs, lows, closes, volumes, cfg.MFI.Period)
	}
	return set
}
