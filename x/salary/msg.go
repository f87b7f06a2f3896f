package salary

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
)

func init() {
	migration.MustRegister(1, &ScheduleUpdateMsg{}, migration.NoModification)
	migration.MustRegister(1, &CommitUpdateMsg{}, migration.NoModification)
	migration.MustRegister(1, &ReleaseMsg{}, migration.NoModification)
	migration.MustRegister(1, &UpdateConfigurationMsg{}, migration.NoModification)
}

var _ weave.Msg = (*ScheduleUpdateMsg)(nil)

func (ScheduleUpdateMsg) Path() string {
	return "salary/schedule_update"
}

func (msg *ScheduleUpdateMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", msg.Metadata.Validate())
	errs = errors.AppendField(errs, "Beneficiary", msg.Beneficiary.Validate())
	if msg.MonthlySalary < 0 {
		errs = errors.AppendField(errs, "MonthlySalary",
			errors.Wrap(errors.ErrAmount, "must not be negative"))
	}
	return errs
}

var _ weave.Msg = (*CommitUpdateMsg)(nil)

func (CommitUpdateMsg) Path() string {
	return "salary/commit_update"
}

func (msg *CommitUpdateMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", msg.Metadata.Validate())
	errs = errors.AppendField(errs, "Beneficiary", msg.Beneficiary.Validate())
	return errs
}

var _ weave.Msg = (*ReleaseMsg)(nil)

func (ReleaseMsg) Path() string {
	return "salary/release"
}

func (msg *ReleaseMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", msg.Metadata.Validate())
	errs = errors.AppendField(errs, "Beneficiary", msg.Beneficiary.Validate())
	return errs
}

var _ weave.Msg = (*UpdateConfigurationMsg)(nil)

func (UpdateConfigurationMsg) Path() string {
	return "salary/update_configuration"
}

func (msg *UpdateConfigurationMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", msg.Metadata.Validate())
	if msg.Patch == nil {
		errs = errors.AppendField(errs, "Patch",
			errors.Wrap(errors.ErrEmpty, "patch is required"))
	}
	return errs
}
