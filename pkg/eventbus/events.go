package eventbus

import "strings"

const (
	TestExecutionStarted   = "TEST_EXECUTION_STARTED"
	TestExecutionStopped   = "TEST_EXECUTION_STOPPED"
	TestExecutionCompleted = "TEST_EXECUTION_COMPLETED"
	TestExecutionFailed    = "TEST_EXECUTION_FAILED"
	ExecutionUpdate        = "EXECUTION_UPDATE"
	MessageTo5GLabX        = "MESSAGE_TO_5GLABX"
	MessageToUEAnalysis    = "MESSAGE_TO_UE_ANALYSIS"
	CellSearchStep         = "CELL_SEARCH_STEP"
	EndToEndAnalysis       = "END_TO_END_ANALYSIS"
	DeploymentUpdate       = "DEPLOYMENT_UPDATE"
	LoadTestUpdate         = "LOAD_TEST_UPDATE"
)

// UE analysis event types.
const (
	UEConnected         = "UE_CONNECTED"
	UEDisconnected      = "UE_DISCONNECTED"
	UERegistration      = "UE_REGISTRATION"
	UEServiceRequest    = "UE_SERVICE_REQUEST"
	UEHandover          = "UE_HANDOVER"
	UECallSetup         = "UE_CALL_SETUP"
	UECallRelease       = "UE_CALL_RELEASE"
	UEMobilityUpdate    = "UE_MOBILITY_UPDATE"
	UESecurityEvent     = "UE_SECURITY_EVENT"
	UEPerformanceUpdate = "UE_PERFORMANCE_UPDATE"
)

// LayerUpdate returns the event type carrying per-layer parameter updates, e.g. LAYER_MAC_UPDATE.
func LayerUpdate(layer string) string {
	return "LAYER_" + strings.ToUpper(strings.TrimSpace(layer)) + "_UPDATE"
}
