//go:build test

// Code generated by dependgen — DO NOT EDIT.
package session_test

import "github.com/srgg/testify/depend"

var ControllerTestSuiteTestRegistry = map[string]func(any){
	"TestScenario_DiscoverThenConnect": func(s any) { s.(*ControllerTestSuite).TestScenario_DiscoverThenConnect() },
	"TestConnect_ConnectionFailed": func(s any) { s.(*ControllerTestSuite).TestConnect_ConnectionFailed() },
	"TestConnect_OtherFailuresAreGeneric": func(s any) { s.(*ControllerTestSuite).TestConnect_OtherFailuresAreGeneric() },
	"TestDisconnect_FailureMapping": func(s any) { s.(*ControllerTestSuite).TestDisconnect_FailureMapping() },
	"TestConnect_IsIdempotent": func(s any) { s.(*ControllerTestSuite).TestConnect_IsIdempotent() },
	"TestConnect_UnknownDeviceIsAnomalous": func(s any) { s.(*ControllerTestSuite).TestConnect_UnknownDeviceIsAnomalous() },
	"TestInitialize_FailureIsDegraded": func(s any) { s.(*ControllerTestSuite).TestInitialize_FailureIsDegraded() },
	"TestStopScan_LateEventsAreApplied": func(s any) { s.(*ControllerTestSuite).TestStopScan_LateEventsAreApplied() },
	"TestStopScan_Failure": func(s any) { s.(*ControllerTestSuite).TestStopScan_Failure() },
	"TestCheckPermission_IsPure": func(s any) { s.(*ControllerTestSuite).TestCheckPermission_IsPure() },
	"TestDiagnosticFallsBackToBridgeError": func(s any) { s.(*ControllerTestSuite).TestDiagnosticFallsBackToBridgeError() },
	"TestInitAudio": func(s any) { s.(*ControllerTestSuite).TestInitAudio() },
	"TestConnectedBySession": func(s any) { s.(*ControllerTestSuite).TestConnectedBySession() },
	"TestRegistryNameFallsBackToAlias": func(s any) { s.(*ControllerTestSuite).TestRegistryNameFallsBackToAlias() },
	"TestRegistryNameFromUndrainedObservation": func(s any) { s.(*ControllerTestSuite).TestRegistryNameFromUndrainedObservation() },
}

var ControllerTestSuiteTestOrder = []string{
	"TestScenario_DiscoverThenConnect",
	"TestConnect_ConnectionFailed",
	"TestConnect_OtherFailuresAreGeneric",
	"TestDisconnect_FailureMapping",
	"TestConnect_IsIdempotent",
	"TestConnect_UnknownDeviceIsAnomalous",
	"TestInitialize_FailureIsDegraded",
	"TestStopScan_LateEventsAreApplied",
	"TestStopScan_Failure",
	"TestCheckPermission_IsPure",
	"TestDiagnosticFallsBackToBridgeError",
	"TestInitAudio",
	"TestConnectedBySession",
	"TestRegistryNameFallsBackToAlias",
	"TestRegistryNameFromUndrainedObservation",
}

var ControllerTestSuiteDependencies = depend.Depends(func(s any) *depend.Dep {
	dep := new(depend.Dep)
	dep.On("TestConnect_IsIdempotent", "TestScenario_DiscoverThenConnect")
	dep.On("TestInitAudio", "TestInitialize_FailureIsDegraded")
	return dep
})

// GeneratedDependConfig returns the dependency configuration for ControllerTestSuite.
// This method allows ControllerTestSuite to be used with depend.RunSuite(t, suite).
// DO NOT implement this method manually - it is auto-generated.
func (s *ControllerTestSuite) GeneratedDependConfig() *depend.SuiteConfig {
	return &depend.SuiteConfig{
		Registry: ControllerTestSuiteTestRegistry,
		Order:    ControllerTestSuiteTestOrder,
		Deps:     ControllerTestSuiteDependencies,
	}
}
