package main

type createPlanRequest struct {
	Owner          string `json:"owner"`
	Duration       string `json:"duration"`
	LinkedIdentity string `json:"linkedIdentity"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
}

type durationRequest struct {
	Duration string `json:"duration"`
}

type linkRequest struct {
	Identity string `json:"identity"`
}

type paymentRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}
