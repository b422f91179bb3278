package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/jeongseonghan/qam-channel/internal/experiment"
	"github.com/jeongseonghan/qam-channel/internal/modem"
)

// WriteTable renders res as a console table, one row per modulation order
// and one column per SNR value.
func WriteTable(w io.Writer, res *experiment.Result) {
	header := make([]string, 0, len(res.SNR)+1)
	header = append(header, "Eb/N0 (dB)")
	for _, snr := range res.SNR {
		header = append(header, FormatValue(snr))
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for i, m := range res.Orders {
		row := make([]string, 0, len(header))
		row = append(row, modem.Order(m).String())
		for j := range res.SNR {
			row = append(row, fmt.Sprintf("%.3e", res.BER[i][j]))
		}
		table.Append(row)
	}
	table.Render()
}
