package mayus

import (
	"time"

	"github.com/pkg/errors"
	"github.com/tealeg/xlsx"
)

const (
	reportSessionsSheet = "sessions"
	reportSnmpSheet     = "snmp"
)

var reportHeader = []string{
	"Peer", "Input", "Output", "Mirror",
	"Lines", "Bytes", "DecodeErrors", "CountChanged", "Retransmits",
	"Started", "Ended", "EndReason",
}

// WriteReport saves records, one row per session, and a snapshot of snmp into
// an xlsx workbook at path. A nil snmp leaves the snmp sheet out.
func WriteReport(path string, records []SessionRecord, snmp *Snmp) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(reportSessionsSheet)
	if err != nil {
		return errors.WithStack(err)
	}
	addStringRow(sheet, reportHeader)
	for _, rec := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(rec.Peer)
		row.AddCell().SetString(rec.InputName)
		row.AddCell().SetString(rec.OutputName)
		row.AddCell().SetString(rec.MirrorPath)
		row.AddCell().SetInt(int(rec.Lines))
		row.AddCell().SetInt(int(rec.Bytes))
		row.AddCell().SetInt(int(rec.DecodeErrors))
		row.AddCell().SetInt(int(rec.CountChanged))
		row.AddCell().SetInt(int(rec.Retransmits))
		row.AddCell().SetString(formatTime(rec.Started))
		row.AddCell().SetString(formatTime(rec.Ended))
		row.AddCell().SetString(rec.EndReason)
	}

	if snmp != nil {
		sheet, err := file.AddSheet(reportSnmpSheet)
		if err != nil {
			return errors.WithStack(err)
		}
		addStringRow(sheet, snmp.Header())
		addStringRow(sheet, snmp.ToSlice())
	}

	if err := file.Save(path); err != nil {
		return errors.Wrapf(ErrFileOpen, "save report %s: %v", path, err)
	}
	return nil
}

func addStringRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
