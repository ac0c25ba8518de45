package main

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/eduos/kernel/internal/authdb"
	"github.com/eduos/kernel/internal/kernel"
	"github.com/eduos/kernel/pkg/mm/paging"
	"github.com/eduos/kernel/pkg/task"
	"github.com/eduos/kernel/pkg/trap"
)

type scenarioFunc func(log logr.Logger) error

var scenarios = map[string]scenarioFunc{
	"fork-wait":     scenarioForkWait,
	"kill-handler":  scenarioKillHandler,
	"pipe":          scenarioPipe,
	"sem-block":     scenarioSemBlock,
	"edf-admission": scenarioEDFAdmission,
	"login":         scenarioLogin,
}

func bootScenarioKernel(log logr.Logger) (*kernel.Kernel, error) {
	cfg := kernel.DefaultConfig()
	cfg.NormalFrames = 512
	return kernel.New(cfg, log)
}

// spawnTask forks a fresh task off init and gives it a mapped scratch
// VMA, standing in for what execve would otherwise set up.
func spawnTask(k *kernel.Kernel) (*task.Task, error) {
	t, err := k.Tasks.Fork(k.Tasks.Init())
	if err != nil {
		return nil, err
	}
	k.Sched.Enqueue(t)
	t.MM = k.NewMM()
	if _, err := t.MM.Map(0x1000, 16*paging.PageSize, paging.Perm{Read: true, Write: true, User: true}, paging.BackingAnonymous); err != nil {
		return nil, err
	}
	return t, nil
}

func dispatch(k *kernel.Kernel, t *task.Task, num int, args ...uintptr) (*trap.Frame, error) {
	f := &trap.Frame{Num: num}
	copy(f.Args[:], args)
	k.Trap.Dispatch(t, f)
	if f.Return == -1 {
		return f, fmt.Errorf("syscall %d failed, errno %d", num, t.Errno)
	}
	return f, nil
}

func scenarioForkWait(log logr.Logger) error {
	k, err := bootScenarioKernel(log)
	if err != nil {
		return err
	}
	defer k.Close()

	parent, err := spawnTask(k)
	if err != nil {
		return err
	}
	f, err := dispatch(k, parent, trap.SysFork)
	if err != nil {
		return err
	}
	child, ok := k.Tasks.Lookup(int(f.Return))
	if !ok {
		return fmt.Errorf("fork-wait: child %d vanished", f.Return)
	}
	if _, err := dispatch(k, child, trap.SysExit, 42); err != nil {
		return err
	}
	f, err = dispatch(k, parent, trap.SysWaitpid, uintptr(child.PID), 0, 0)
	if err != nil {
		return err
	}
	fmt.Printf("fork-wait: reaped pid %d\n", f.Return)
	return nil
}

func scenarioKillHandler(log logr.Logger) error {
	k, err := bootScenarioKernel(log)
	if err != nil {
		return err
	}
	defer k.Close()

	victim, err := spawnTask(k)
	if err != nil {
		return err
	}
	killer, err := spawnTask(k)
	if err != nil {
		return err
	}
	if _, err := dispatch(k, killer, trap.SysKill, uintptr(victim.PID), 15 /* SIGTERM */); err != nil {
		return err
	}
	trap.DeliverPending(k.Tasks, victim)
	fmt.Printf("kill-handler: victim state after delivery: %s\n", victim.State())
	return nil
}

func scenarioPipe(log logr.Logger) error {
	k, err := bootScenarioKernel(log)
	if err != nil {
		return err
	}
	defer k.Close()

	sender, err := spawnTask(k)
	if err != nil {
		return err
	}
	receiver, err := spawnTask(k)
	if err != nil {
		return err
	}

	f, err := dispatch(k, sender, trap.SysMsgget, 0 /* IPC_PRIVATE */, 1 /* IPC_CREAT */)
	if err != nil {
		return err
	}
	qid := uintptr(f.Return)

	payload := []byte("hello from kshell")
	if err := sender.MM.WriteUser(0x1000, payload); err != nil {
		return err
	}
	if _, err := dispatch(k, sender, trap.SysMsgsnd, qid, 1, 0x1000, uintptr(len(payload)), 0); err != nil {
		return err
	}
	f, err = dispatch(k, receiver, trap.SysMsgrcv, qid, 1, 0x1000, uintptr(len(payload)), 0)
	if err != nil {
		return err
	}
	got := make([]byte, f.Return)
	if err := receiver.MM.ReadUser(0x1000, got); err != nil {
		return err
	}
	fmt.Printf("pipe: received %q\n", got)
	return nil
}

func scenarioSemBlock(log logr.Logger) error {
	k, err := bootScenarioKernel(log)
	if err != nil {
		return err
	}
	defer k.Close()

	owner, err := spawnTask(k)
	if err != nil {
		return err
	}
	waiter, err := spawnTask(k)
	if err != nil {
		return err
	}

	f, err := dispatch(k, owner, trap.SysSemget, 0, 1, 1 /* IPC_CREAT */)
	if err != nil {
		return err
	}
	semid := uintptr(f.Return)

	done := make(chan error, 1)
	go func() {
		_, err := dispatch(k, waiter, trap.SysSemop, semid, 0, ^uintptr(0)) // val == -1
		done <- err
	}()

	if _, err := dispatch(k, owner, trap.SysSemop, semid, 0, 1); err != nil {
		return err
	}
	if err := <-done; err != nil {
		return err
	}
	fmt.Println("sem-block: waiter unblocked after owner released")
	return nil
}

func scenarioLogin(log logr.Logger) error {
	const salt = "abc123"
	hash := authdb.HashPassword("hunter2", salt)

	cfg := kernel.DefaultConfig()
	cfg.NormalFrames = 512
	cfg.PasswdData = "alice:x:1000:1000:Alice:/home/alice:/bin/sh\n"
	cfg.ShadowData = fmt.Sprintf("alice:%s:%s\n", hash, salt)

	k, err := kernel.New(cfg, log)
	if err != nil {
		return err
	}
	defer k.Close()

	caller, err := spawnTask(k)
	if err != nil {
		return err
	}

	user := []byte("alice")
	pass := []byte("hunter2")
	if err := caller.MM.WriteUser(0x1000, user); err != nil {
		return err
	}
	if err := caller.MM.WriteUser(0x2000, pass); err != nil {
		return err
	}
	wrongPass := []byte("wrongpw")
	if err := caller.MM.WriteUser(0x3000, wrongPass); err != nil {
		return err
	}
	if _, err := dispatch(k, caller, trap.SysLogin, 0x1000, uintptr(len(user)), 0x2000, uintptr(len(pass))); err != nil {
		return err
	}
	fmt.Println("login: alice authenticated")

	if _, err := dispatch(k, caller, trap.SysLogin, 0x1000, uintptr(len(user)), 0x3000, uintptr(len(wrongPass))); err == nil {
		return fmt.Errorf("login: expected wrong-password attempt to fail")
	}
	fmt.Println("login: wrong password correctly rejected")
	return nil
}

func scenarioEDFAdmission(log logr.Logger) error {
	cfg := kernel.DefaultConfig()
	cfg.NormalFrames = 512
	cfg.Policy = "edf"
	k, err := kernel.New(cfg, log)
	if err != nil {
		return err
	}
	defer k.Close()

	t, err := spawnTask(k)
	if err != nil {
		return err
	}
	if _, err := dispatch(k, t, trap.SysSchedSetParam, 10, 2, 0); err != nil {
		return err
	}
	if _, err := dispatch(k, t, trap.SysWaitperiod); err != nil {
		return err
	}
	fmt.Printf("edf-admission: task %d admitted=%v\n", t.PID, t.Sched.Admitted)
	return nil
}
