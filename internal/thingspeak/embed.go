package thingspeak

import "fmt"

const embedBase = "https://thingspeak.com"

// Readings arrive roughly every ten minutes, so approximate six per hour
// when sizing dynamic chart windows.
const readingsPerHour = 6

// ChartURL returns the base embeddable chart URL for a channel field.
func (c *Client) ChartURL(fieldNumber int) string {
	return fmt.Sprintf("%s/channels/%s/charts/%d?api_key=%s", embedBase, c.channelID, fieldNumber, c.readKey)
}

// ChartDaysURL returns the chart URL scoped to the trailing number of days.
func (c *Client) ChartDaysURL(fieldNumber, days int) string {
	return fmt.Sprintf("%s&days=%d", c.ChartURL(fieldNumber), days)
}

// DynamicChartURL returns the auto-updating JavaScript chart embed URL.
func (c *Client) DynamicChartURL(fieldNumber, days int) string {
	return fmt.Sprintf("%s/channels/%s/charts/%d?api_key=%s&dynamic=true&results=%d",
		embedBase, c.channelID, fieldNumber, c.readKey, days*24*readingsPerHour)
}

// IframeHTML returns ready-to-embed iframe markup for a field chart.
func (c *Client) IframeHTML(fieldNumber, days int, width, height string) string {
	return fmt.Sprintf(`<iframe width="%s" height="%s" frameborder="0" src="%s"></iframe>`,
		width, height, c.ChartDaysURL(fieldNumber, days))
}

// DashboardURL returns the public channel dashboard URL.
func (c *Client) DashboardURL() string {
	return fmt.Sprintf("%s/channels/%s", embedBase, c.channelID)
}

// PrivateDashboardURL returns the dashboard URL with the read key attached.
func (c *Client) PrivateDashboardURL() string {
	return fmt.Sprintf("%s?api_key=%s", c.DashboardURL(), c.readKey)
}
