package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"
)

const xmlTimeLayout = "2006-01-02 15:04:05"

// WriteXML stores the campaign_report.xml document.
func (t *Tree) WriteXML(o Outcome) (string, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("TestReport")
	root.CreateAttr("campaign", o.Campaign)
	root.CreateAttr("verdict", o.Verdict.String())

	info := root.CreateElement("CampaignInfo")
	info.CreateElement("CampaignPath").SetText(o.CampaignPath)
	info.CreateElement("HwVariant").SetText(o.HwVariant)
	info.CreateElement("StartTime").SetText(formatTime(o.Start))
	info.CreateElement("EndTime").SetText(formatTime(o.End))
	if o.RemoteURL != "" {
		info.CreateElement("RemoteURL").SetText(o.RemoteURL)
	}

	for _, name := range sortedKeys(o.Devices) {
		dev := root.CreateElement("DeviceInfo")
		dev.CreateAttr("name", name)
		props := o.Devices[name]
		for _, k := range sortedKeys(props) {
			p := dev.CreateElement("Property")
			p.CreateAttr("name", k)
			p.CreateAttr("value", props[k])
		}
	}

	stats := root.CreateElement("Statistics")
	stats.CreateAttr("tc_executed_count", strconv.FormatInt(o.Metrics.TCExecutedCount, 10))
	stats.CreateAttr("pass_rate", strconv.FormatFloat(o.Metrics.PassRate, 'f', 2, 64))
	stats.CreateAttr("fail_rate", strconv.FormatFloat(o.Metrics.FailRate, 'f', 2, 64))
	stats.CreateAttr("blocked_rate", strconv.FormatFloat(o.Metrics.BlockedRate, 'f', 2, 64))
	stats.CreateAttr("critical_failure_count", strconv.FormatInt(o.Metrics.CriticalFailureCount, 10))

	cases := root.CreateElement("TestCases")
	for _, c := range o.Cases {
		el := cases.CreateElement("TestCase")
		el.CreateAttr("order", strconv.Itoa(c.Index))
		el.CreateAttr("id", c.Name)
		el.CreateAttr("verdict", c.Verdict.String())
		if c.UseCase != "" {
			el.CreateElement("UseCase").SetText(c.UseCase)
		}
		if c.Expected != "" {
			el.CreateElement("ExpectedResult").SetText(c.Expected.String())
		}
		el.CreateElement("Attempts").SetText(strconv.Itoa(c.Attempts))
		el.CreateElement("PassCount").SetText(strconv.Itoa(c.Passes))
		if c.Critical {
			el.CreateAttr("critical", "true")
		}
		if c.Warning {
			el.CreateAttr("warning", "true")
		}
		if !c.Start.IsZero() {
			el.CreateElement("StartTime").SetText(formatTime(c.Start))
			el.CreateElement("EndTime").SetText(formatTime(c.End))
		}
		el.CreateElement("Comment").SetText(c.Message)
	}

	doc.Indent(2)
	path := t.Path(XMLFile)
	if err := doc.WriteToFile(path); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", XMLFile, err)
	}
	return path, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(xmlTimeLayout)
}
