package schedule

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

const (
	testAccount   = "123456789012"
	testPartition = "aws"
	testRegion    = "ap-northeast-1"
)

type call struct {
	Method string
	Arg    string
}

var mutatingMethods = []string{
	"CreatePolicy", "DeletePolicy", "CreateRole", "AttachPolicy", "DetachPolicy", "DeleteRole",
	"CreateAssociation", "UpdateAssociation", "DeleteAssociation",
}

// fakeAccessor は呼び出しを記録するインメモリのAccessor
type fakeAccessor struct {
	mu           sync.Mutex
	policies     map[string]*Policy
	roles        map[string]*Role
	associations map[string]*Association
	calls        []call
	nextID       int

	// failOn は "Method:arg" をキーに返すエラーを指定する
	failOn map[string]error
}

func newFakeAccessor() *fakeAccessor {
	return &fakeAccessor{
		policies:     map[string]*Policy{},
		roles:        map[string]*Role{},
		associations: map[string]*Association{},
		failOn:       map[string]error{},
	}
}

func (f *fakeAccessor) record(method, arg string) error {
	f.calls = append(f.calls, call{Method: method, Arg: arg})
	if err, ok := f.failOn[method+":"+arg]; ok {
		return err
	}
	return f.failOn[method+":*"]
}

func (f *fakeAccessor) mutatingCalls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if slices.Contains(mutatingMethods, c.Method) {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeAccessor) count(method string) int {
	n := 0
	for _, c := range f.mutatingCalls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (f *fakeAccessor) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeAccessor) seedAssociation(in AssociationInput) *Association {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	a := &Association{
		ID:                 fmt.Sprintf("assoc-%d", f.nextID),
		Name:               in.Name,
		DocumentName:       in.DocumentName,
		ScheduleExpression: in.ScheduleExpression,
		Parameters:         maps.Clone(in.Parameters),
	}
	f.associations[in.Name] = a
	return a
}

func (f *fakeAccessor) FindPolicy(_ context.Context, name string) (*Policy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("FindPolicy", name); err != nil {
		return nil, err
	}
	if p, ok := f.policies[name]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeAccessor) CreatePolicy(_ context.Context, name, document string) (*Policy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreatePolicy", name); err != nil {
		return nil, err
	}
	if _, ok := f.policies[name]; ok {
		return nil, errors.New("EntityAlreadyExists")
	}
	p := &Policy{Name: name, Arn: PolicyArn(testPartition, testAccount, name)}
	f.policies[name] = p
	cp := *p
	return &cp, nil
}

func (f *fakeAccessor) DeletePolicy(_ context.Context, arn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeletePolicy", arn); err != nil {
		return err
	}
	for name, p := range f.policies {
		if p.Arn != arn {
			continue
		}
		for _, r := range f.roles {
			if slices.Contains(r.AttachedPolicyArns, arn) {
				return errors.New("DeleteConflict: policy is attached")
			}
		}
		delete(f.policies, name)
		return nil
	}
	return ErrNotFound
}

func (f *fakeAccessor) FindRole(_ context.Context, name string) (*Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("FindRole", name); err != nil {
		return nil, err
	}
	if r, ok := f.roles[name]; ok {
		cp := *r
		cp.AttachedPolicyArns = slices.Clone(r.AttachedPolicyArns)
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeAccessor) CreateRole(_ context.Context, name, trustDocument string) (*Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateRole", name); err != nil {
		return nil, err
	}
	if !strings.Contains(trustDocument, AutomationServicePrincipal) {
		return nil, errors.New("MalformedPolicyDocument")
	}
	r := &Role{Name: name, Arn: RoleArn(testPartition, testAccount, name)}
	f.roles[name] = r
	cp := *r
	return &cp, nil
}

func (f *fakeAccessor) AttachPolicy(_ context.Context, roleName, policyArn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AttachPolicy", roleName); err != nil {
		return err
	}
	r, ok := f.roles[roleName]
	if !ok {
		return errors.New("NoSuchEntity: role")
	}
	if !slices.Contains(r.AttachedPolicyArns, policyArn) {
		r.AttachedPolicyArns = append(r.AttachedPolicyArns, policyArn)
	}
	return nil
}

func (f *fakeAccessor) DetachPolicy(_ context.Context, roleName, policyArn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DetachPolicy", roleName); err != nil {
		return err
	}
	r, ok := f.roles[roleName]
	if !ok || !slices.Contains(r.AttachedPolicyArns, policyArn) {
		return ErrNotFound
	}
	r.AttachedPolicyArns = slices.DeleteFunc(r.AttachedPolicyArns, func(s string) bool { return s == policyArn })
	return nil
}

func (f *fakeAccessor) DeleteRole(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteRole", name); err != nil {
		return err
	}
	r, ok := f.roles[name]
	if !ok {
		return ErrNotFound
	}
	if len(r.AttachedPolicyArns) > 0 {
		return errors.New("DeleteConflict: role has attached policies")
	}
	delete(f.roles, name)
	return nil
}

func (f *fakeAccessor) FindAssociation(_ context.Context, name string) (*Association, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("FindAssociation", name); err != nil {
		return nil, err
	}
	if a, ok := f.associations[name]; ok {
		cp := *a
		cp.Parameters = maps.Clone(a.Parameters)
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeAccessor) ListAssociations(_ context.Context, prefix string) ([]Association, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListAssociations", prefix); err != nil {
		return nil, err
	}
	var out []Association
	// 名前の逆順で返し、呼び出し側が並び順に依存しないことを確認する
	names := slices.Sorted(maps.Keys(f.associations))
	slices.Reverse(names)
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			out = append(out, *f.associations[name])
		}
	}
	return out, nil
}

func (f *fakeAccessor) CreateAssociation(_ context.Context, in AssociationInput) (*Association, error) {
	f.mu.Lock()
	if err := f.record("CreateAssociation", in.Name); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if _, ok := f.associations[in.Name]; ok {
		f.mu.Unlock()
		return nil, errors.New("AssociationAlreadyExists")
	}
	f.mu.Unlock()
	a := f.seedAssociation(in)
	cp := *a
	return &cp, nil
}

func (f *fakeAccessor) UpdateAssociation(_ context.Context, id string, in AssociationInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateAssociation", in.Name); err != nil {
		return err
	}
	for _, a := range f.associations {
		if a.ID == id {
			a.DocumentName = in.DocumentName
			a.ScheduleExpression = in.ScheduleExpression
			a.Parameters = maps.Clone(in.Parameters)
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeAccessor) DeleteAssociation(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteAssociation", id); err != nil {
		return err
	}
	for name, a := range f.associations {
		if a.ID == id {
			delete(f.associations, name)
			return nil
		}
	}
	return ErrNotFound
}

func mustDescriptor(kind Kind, id, cluster string) Descriptor {
	d, err := NewDescriptor(kind, id, cluster, testRegion, "dev")
	if err != nil {
		panic(err)
	}
	return d
}

func dbTarget() Target {
	return Target{
		Descriptor:  mustDescriptor(KindDatabase, "db1", ""),
		Partition:   testPartition,
		AccountID:   testAccount,
		ResourceArn: "arn:aws:rds:ap-northeast-1:123456789012:db:db1",
	}
}

func weekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}
}

func dbSpec() Spec {
	return Spec{StartHour: 6, StopHour: 18, Days: weekdays()}
}
