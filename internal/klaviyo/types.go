package klaviyo

// Campaign is one email campaign.
type Campaign struct {
	ID         string `json:"id"`
	Attributes struct {
		Name     string `json:"name"`
		Status   string `json:"status"`
		Archived bool   `json:"archived"`
		SendTime string `json:"send_time"`
	} `json:"attributes"`
}

// Flow is one automation flow.
type Flow struct {
	ID         string `json:"id"`
	Attributes struct {
		Name     string `json:"name"`
		Status   string `json:"status"`
		Archived bool   `json:"archived"`
	} `json:"attributes"`
}

// CampaignMetrics are event counts aggregated over a date range.
type CampaignMetrics struct {
	Sent         int
	Opened       int
	Clicked      int
	Bounced      int
	Unsubscribed int
}

type pageLinks struct {
	Next string `json:"next"`
}

type campaignsResponse struct {
	Data  []Campaign `json:"data"`
	Links pageLinks  `json:"links"`
}

type flowsResponse struct {
	Data  []Flow    `json:"data"`
	Links pageLinks `json:"links"`
}

type profilesResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Created string `json:"created"`
		} `json:"attributes"`
	} `json:"data"`
	Links pageLinks `json:"links"`
}

type metricsResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Name string `json:"name"`
		} `json:"attributes"`
	} `json:"data"`
}

type aggregateResponse struct {
	Data struct {
		Attributes struct {
			Dates []string `json:"dates"`
			Data  []struct {
				Measurements map[string][]float64 `json:"measurements"`
			} `json:"data"`
		} `json:"attributes"`
	} `json:"data"`
}
