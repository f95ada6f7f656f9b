package model

// StyleOverrides replaces the default style of individual layers.
type StyleOverrides struct {
	Historical *LayerStyle `json:"historical,omitempty"`
	Recent     *LayerStyle `json:"recent,omitempty"`
	Difference *LayerStyle `json:"difference,omitempty"`
}

// AnalysisRequest is everything a caller supplies for one snow-change run.
type AnalysisRequest struct {
	Region               Region         `json:"region"`
	Historical           TimePeriod     `json:"historical"`
	Recent               TimePeriod     `json:"recent"`
	HistoricalCollection string         `json:"historical_collection"`
	RecentCollection     string         `json:"recent_collection"`
	CloudCover           int            `json:"cloud_cover"`
	ClipToRegion         bool           `json:"clip_to_region"`
	Styles               StyleOverrides `json:"styles,omitempty"`
}

// ValidatedRequest carries the request together with the sensor profiles resolved for it.
type ValidatedRequest struct {
	AnalysisRequest
	HistoricalSensor SensorProfile
	RecentSensor     SensorProfile
}

// Validate checks every field without contacting any backend.
func (r AnalysisRequest) Validate() (ValidatedRequest, error) {
	if r.Region.IsZero() {
		return ValidatedRequest{}, invalid("region", "a polygon is required")
	}
	if err := r.Historical.Validate(); err != nil {
		return ValidatedRequest{}, prefixField("historical", err)
	}
	if err := r.Recent.Validate(); err != nil {
		return ValidatedRequest{}, prefixField("recent", err)
	}
	if r.Historical.Equal(r.Recent) {
		return ValidatedRequest{}, invalid("recent", "must differ from the historical period")
	}
	if r.CloudCover < 0 || r.CloudCover > 100 {
		return ValidatedRequest{}, invalid("cloud_cover", "must be between 0 and 100, got %d", r.CloudCover)
	}

	hist, err := LookupSensor(r.HistoricalCollection)
	if err != nil {
		return ValidatedRequest{}, err
	}
	recent, err := LookupSensor(r.RecentCollection)
	if err != nil {
		return ValidatedRequest{}, err
	}

	for field, s := range map[string]*LayerStyle{
		"styles.historical": r.Styles.Historical,
		"styles.recent":     r.Styles.Recent,
		"styles.difference": r.Styles.Difference,
	} {
		if s == nil {
			continue
		}
		if err := s.Validate(field); err != nil {
			return ValidatedRequest{}, err
		}
	}

	return ValidatedRequest{AnalysisRequest: r, HistoricalSensor: hist, RecentSensor: recent}, nil
}

func prefixField(prefix string, err error) error {
	if ve, ok := err.(*ValidationError); ok {
		return &ValidationError{Field: prefix + "." + ve.Field, Reason: ve.Reason}
	}
	return err
}
