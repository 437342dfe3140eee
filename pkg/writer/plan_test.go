package writer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rstms/isoburn/pkg/medium"
)

type fakeBackend struct {
	accepts bool
	auto    WriteType
}

func (f fakeBackend) AcceptsWriteType(wt WriteType) bool { return f.accepts }
func (f fakeBackend) AutoSelectWriteType() WriteType     { return f.auto }

func TestBuildPlanAutoWriteType(t *testing.T) {
	cm := &medium.ClassifiedMedium{RandomAccess: true}
	plan, err := BuildPlan(cm, 100, Overrides{}, fakeBackend{auto: WriteSAO}, 2048)
	require.NoError(t, err)
	require.Equal(t, WriteSAO, plan.WriteType)
	require.Equal(t, uint32(100), plan.StartLBA)
	require.False(t, plan.MultiSession)
}

func TestBuildPlanRejectsExplicitWriteType(t *testing.T) {
	cm := &medium.ClassifiedMedium{RandomAccess: true}
	_, err := BuildPlan(cm, 100, Overrides{WriteType: WriteSAO}, fakeBackend{accepts: false}, 2048)
	require.Error(t, err)
}

func TestBuildPlanIntermediateDVDRWGuard(t *testing.T) {
	cm := &medium.ClassifiedMedium{
		Profile: medium.ProfileIntermediateDVDRW,
		Status:  medium.StatusBlank,
		ZeroNWA: 0,
	}
	_, err := BuildPlan(cm, 50, Overrides{}, fakeBackend{auto: WriteTAO}, 2048)
	require.Error(t, err)
}

func TestBuildPlanEnforcesStartFloor(t *testing.T) {
	// Zero-value ZeroNWA stands in for a medium whose classify result left
	// it undefaulted; the planner must still floor the start address at
	// defaultAlignment rather than trusting a low currentNWA as-is.
	cm := &medium.ClassifiedMedium{RandomAccess: true}
	plan, err := BuildPlan(cm, 0, Overrides{}, fakeBackend{auto: WriteTAO}, 2048)
	require.NoError(t, err)
	require.Equal(t, uint32(32), plan.StartLBA)
}

func TestBuildPlanExplicitStartByteAlignment(t *testing.T) {
	cm := &medium.ClassifiedMedium{RandomAccess: true, ZeroNWA: 32}
	startByte := int64(100000)
	plan, err := BuildPlan(cm, 0, Overrides{ExplicitStartByte: &startByte}, fakeBackend{auto: WriteTAO}, 2048)
	require.NoError(t, err)
	require.Equal(t, uint32(0), plan.StartLBA%32)
}
