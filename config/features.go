package config

type Features struct {
	AuthEnabled          bool
	NotificationsEnabled bool
	SchedulerEnabled     bool
}

func LoadFeatures() Features {
	return Features{
		AuthEnabled:          getenvBool("AUTH_ENABLED", false),
		NotificationsEnabled: getenvBool("NOTIFICATIONS_ENABLED", true),
		SchedulerEnabled:     getenvBool("SCHEDULER_ENABLED", true),
	}
}
