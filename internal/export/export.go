// Package export renders projected tables as xlsx, csv and pdf files, and
// builds the import template workbook.
package export

import "github.com/JonMunkholm/dataport/internal/core"

// Encoders returns one encoder per supported export format.
func Encoders() map[core.Format]core.Encoder {
	return map[core.Format]core.Encoder{
		core.FormatXLSX: XLSX{},
		core.FormatCSV:  CSV{},
		core.FormatPDF:  &PDF{},
	}
}
